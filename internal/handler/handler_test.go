package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"salon-loyalty-api/internal/auth"
	"salon-loyalty-api/internal/database"
	"salon-loyalty-api/internal/metrics"
	"salon-loyalty-api/internal/middleware"
	"salon-loyalty-api/internal/models"
	"salon-loyalty-api/internal/service"
)

type testServer struct {
	router http.Handler
	svc    *service.Service
}

func setupTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test_handler.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	authSvc := auth.NewService("handler-test-secret-0123", time.Hour, auth.WithCost(bcrypt.MinCost))
	svc := service.NewService(db, authSvc, service.Options{Logger: zerolog.Nop()})
	t.Cleanup(svc.Shutdown)

	h := NewHandler(svc)
	return &testServer{
		router: NewRouter(h, RouterOptions{Logger: zerolog.Nop(), Metrics: metrics.New(), Limiter: limiter}),
		svc:    svc,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, models.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	var resp models.Response
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, resp
}

// data re-decodes the envelope payload into dst.
func data(t *testing.T, resp models.Response, dst any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("Failed to re-encode data: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}

func (s *testServer) registerCustomer(t *testing.T, phone string) (string, models.Customer) {
	t.Helper()
	rr, resp := s.do(t, "POST", "/api/customers/register", "", models.RegisterCustomerRequest{
		Phone: phone, Password: "secret1", FirstName: "Achieng", LastName: "Kamau",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var res models.AuthResult
	data(t, resp, &res)
	return res.Token, *res.Customer
}

func (s *testServer) loginBusiness(t *testing.T) string {
	t.Helper()
	if _, _, err := s.svc.InitBusiness(context.Background(), service.DefaultBusinessSeed()); err != nil {
		t.Fatalf("InitBusiness failed: %v", err)
	}
	rr, resp := s.do(t, "POST", "/api/business/login", "", models.BusinessLoginRequest{
		Email: "admin@fadesbraids.com", Password: "admin123",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res models.AuthResult
	data(t, resp, &res)
	return res.Token
}

func TestHealthCheck(t *testing.T) {
	s := setupTestServer(t, nil)

	rr, resp := s.do(t, "GET", "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if !resp.Success {
		t.Errorf("Expected success envelope, got %+v", resp)
	}
}

func TestRegister_SetsCookieAndRejectsDuplicates(t *testing.T) {
	s := setupTestServer(t, nil)

	rr, _ := s.do(t, "POST", "/api/customers/register", "", models.RegisterCustomerRequest{
		Phone: "0712000001", Password: "secret1", FirstName: "Achieng", LastName: "Kamau",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.CustomerCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.MaxAge != int(time.Hour.Seconds()) {
		t.Errorf("Expected HttpOnly session cookie with one hour max-age, got %+v", cookie)
	}

	rr, resp := s.do(t, "POST", "/api/customers/register", "", models.RegisterCustomerRequest{
		Phone: "0712000001", Password: "secret1", FirstName: "Achieng", LastName: "Kamau",
	})
	if rr.Code != http.StatusConflict || resp.Success {
		t.Errorf("Expected 409 failure, got %d %+v", rr.Code, resp)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	s := setupTestServer(t, nil)

	rr, resp := s.do(t, "POST", "/api/customers/register", "", models.RegisterCustomerRequest{
		Phone: "0712000002", Password: "secret1", LastName: "Kamau",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Field != "first_name" {
		t.Errorf("Expected a first_name field error, got %+v", resp.Errors)
	}

	rr, resp = s.do(t, "POST", "/api/customers/register", "", "{not json")
	if rr.Code != http.StatusBadRequest || resp.Message != "invalid JSON in request body" {
		t.Errorf("Expected invalid JSON error, got %d %q", rr.Code, resp.Message)
	}

	rr, resp = s.do(t, "POST", "/api/customers/register", "", nil)
	if rr.Code != http.StatusBadRequest || resp.Message != "request body is required" {
		t.Errorf("Expected missing body error, got %d %q", rr.Code, resp.Message)
	}
}

func TestCustomerRoutes_RequireToken(t *testing.T) {
	s := setupTestServer(t, nil)

	rr, _ := s.do(t, "GET", "/api/customers/profile", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", rr.Code)
	}

	businessToken := s.loginBusiness(t)
	rr, _ = s.do(t, "GET", "/api/customers/profile", businessToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for a business token, got %d", rr.Code)
	}

	token, _ := s.registerCustomer(t, "0712000003")
	rr, _ = s.do(t, "GET", "/api/business/dashboard", token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for a customer token on business routes, got %d", rr.Code)
	}
}

func TestCheckInAndRedeemFlow(t *testing.T) {
	s := setupTestServer(t, nil)
	businessToken := s.loginBusiness(t)
	token, customer := s.registerCustomer(t, "0712000004")

	rr, resp := s.do(t, "GET", "/api/business/codes", businessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var codes models.CurrentCodes
	data(t, resp, &codes)
	if len(codes.DigitCode) != 6 {
		t.Fatalf("Expected a six digit code, got %q", codes.DigitCode)
	}

	rr, resp = s.do(t, "POST", "/api/customers/checkin", token, models.CheckInRequest{Code: codes.DigitCode})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result models.CheckInResult
	data(t, resp, &result)
	if result.PointsEarned != 10 || result.AvailablePoints != 60 {
		t.Errorf("Unexpected check-in result %+v", result)
	}

	rr, resp = s.do(t, "POST", "/api/customers/checkin", token, models.CheckInRequest{Code: "NOT-A-CODE"})
	if rr.Code != http.StatusBadRequest || resp.Success {
		t.Errorf("Expected 400 for a wrong code, got %d", rr.Code)
	}

	rr, _ = s.do(t, "POST", "/api/business/award-points", businessToken, models.AwardPointsRequest{
		CustomerID: customer.ID, Points: 40, Reason: "Loyal client",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr, resp = s.do(t, "GET", "/api/customers/rewards", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var avail models.AvailableRewards
	data(t, resp, &avail)
	if avail.CustomerPoints != 100 || len(avail.Rewards) != 1 {
		t.Fatalf("Expected one affordable reward with 100 points, got %+v", avail)
	}

	rr, resp = s.do(t, "POST", "/api/customers/rewards/"+avail.Rewards[0].ID+"/redeem", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var red models.Redemption
	data(t, resp, &red)
	if red.PointsUsed != 100 || red.RemainingPoints != 0 {
		t.Errorf("Unexpected redemption %+v", red)
	}

	rr, resp = s.do(t, "POST", "/api/customers/rewards/"+avail.Rewards[0].ID+"/redeem", token, nil)
	if rr.Code != http.StatusBadRequest || resp.Message == "" {
		t.Errorf("Expected 400 for insufficient points, got %d %q", rr.Code, resp.Message)
	}

	rr, _ = s.do(t, "POST", "/api/customers/rewards/00000000-0000-4000-8000-000000000000/redeem", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing reward, got %d", rr.Code)
	}

	rr, resp = s.do(t, "GET", "/api/customers/visits?page=1&limit=5", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var visits models.VisitPage
	data(t, resp, &visits)
	if visits.Pagination.TotalItems != 2 || visits.Visits[0].CheckInCode != models.ManualAwardCode {
		t.Errorf("Expected award then check-in newest first, got %+v", visits)
	}
}

func TestBusinessRewardCRUD(t *testing.T) {
	s := setupTestServer(t, nil)
	businessToken := s.loginBusiness(t)

	rr, resp := s.do(t, "POST", "/api/business/rewards", businessToken, models.RewardInput{
		Title: "Beard Trim", Description: "Quick beard shape-up", PointsRequired: 80, Value: "Free trim",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created models.Reward
	data(t, resp, &created)
	if created.Category != models.CategoryDiscount || !created.IsActive {
		t.Errorf("Expected default category and active, got %+v", created)
	}

	rr, resp = s.do(t, "PUT", "/api/business/rewards/"+created.ID, businessToken, models.RewardInput{
		Title: "Beard Trim", Description: "Quick beard shape-up", PointsRequired: 90, Value: "Free trim",
		Category: models.CategoryFreeService,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated models.Reward
	data(t, resp, &updated)
	if updated.PointsRequired != 90 || updated.Category != models.CategoryFreeService {
		t.Errorf("Unexpected updated reward %+v", updated)
	}

	rr, _ = s.do(t, "POST", "/api/business/rewards", businessToken, models.RewardInput{
		Title: "Broken", Description: "x", PointsRequired: 0, Value: "x",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for zero points, got %d", rr.Code)
	}

	rr, _ = s.do(t, "DELETE", "/api/business/rewards/"+created.ID, businessToken, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	rr, _ = s.do(t, "DELETE", "/api/business/rewards/"+created.ID, businessToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", rr.Code)
	}

	rr, resp = s.do(t, "GET", "/api/business/rewards", businessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var listing struct {
		Rewards []models.Reward `json:"rewards"`
	}
	data(t, resp, &listing)
	if len(listing.Rewards) != 5 {
		t.Errorf("Expected the 5 starter rewards, got %d", len(listing.Rewards))
	}
}

func TestBusinessDashboardAndSettings(t *testing.T) {
	s := setupTestServer(t, nil)
	businessToken := s.loginBusiness(t)
	s.registerCustomer(t, "0712000005")

	rr, resp := s.do(t, "GET", "/api/business/dashboard", businessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var dash models.Dashboard
	data(t, resp, &dash)
	if dash.Stats.TotalCustomers != 1 || dash.Stats.ActiveRewards != 5 || dash.CurrentCode.DigitCode == "" {
		t.Errorf("Unexpected dashboard %+v", dash.Stats)
	}

	rr, _ = s.do(t, "PUT", "/api/business/settings", businessToken, models.BusinessSettings{
		PointsPerVisit: 0, CodeRefreshInterval: 5, WelcomeBonus: 50,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for zero points per visit, got %d", rr.Code)
	}

	rr, resp = s.do(t, "PUT", "/api/business/settings", businessToken, models.BusinessSettings{
		PointsPerVisit: 20, CodeRefreshInterval: 10, WelcomeBonus: 0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	_, c := s.registerCustomer(t, "0712000006")
	if c.AvailablePoints != 0 {
		t.Errorf("Expected no welcome bonus after settings change, got %d", c.AvailablePoints)
	}

	rr, resp = s.do(t, "GET", "/api/business/customers?search=0712000006", businessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var page models.CustomerPage
	data(t, resp, &page)
	if len(page.Customers) != 1 || page.Customers[0].ID != c.ID {
		t.Errorf("Expected search to find the new customer, got %+v", page.Customers)
	}

	rr, _ = s.do(t, "DELETE", "/api/business/customers/"+c.ID, businessToken, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	rr, resp = s.do(t, "POST", "/api/customers/login", "", models.CustomerLoginRequest{Phone: "0712000006", Password: "secret1"})
	if rr.Code != http.StatusUnauthorized || resp.Success {
		t.Errorf("Expected deactivated customer login to fail, got %d", rr.Code)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	s := setupTestServer(t, nil)
	token, _ := s.registerCustomer(t, "0712000007")

	rr, _ := s.do(t, "POST", "/api/customers/logout", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.CustomerCookie || cookies[0].MaxAge >= 0 {
		t.Errorf("Expected an expired session cookie, got %+v", cookies)
	}
}

func TestLoginRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(2, time.Minute, nil)
	t.Cleanup(limiter.Stop)
	s := setupTestServer(t, limiter)

	body := models.CustomerLoginRequest{Phone: "0712000099", Password: "secret1"}
	for i := 0; i < 2; i++ {
		rr, _ := s.do(t, "POST", "/api/customers/login", "", body)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("Expected status 401, got %d", rr.Code)
		}
	}
	rr, _ := s.do(t, "POST", "/api/customers/login", "", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rr.Code)
	}

	rr, _ = s.do(t, "GET", "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected unthrottled health check, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t, nil)
	s.do(t, "GET", "/health", "", nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Errorf("Expected request counter in metrics output")
	}
}
