package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"salon-loyalty-api/internal/service"
)

func initBusinessCmd(configFile *string) *cobra.Command {
	seed := service.DefaultBusinessSeed()

	cmd := &cobra.Command{
		Use:   "init-business",
		Short: "Create the business account and the starter rewards",
		Long: `Create the operator account and the default reward catalog.

Does nothing when a business already exists. Email and password default
to BUSINESS_EMAIL and BUSINESS_PASSWORD when set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("email") {
				if v := os.Getenv("BUSINESS_EMAIL"); v != "" {
					seed.Email = v
				}
			}
			if !cmd.Flags().Changed("password") {
				if v := os.Getenv("BUSINESS_PASSWORD"); v != "" {
					seed.Password = v
				}
			}
			return runInitBusiness(cmd.Context(), *configFile, seed)
		},
	}

	cmd.Flags().StringVar(&seed.BusinessName, "name", seed.BusinessName, "business name")
	cmd.Flags().StringVar(&seed.Email, "email", seed.Email, "login email")
	cmd.Flags().StringVar(&seed.Password, "password", seed.Password, "login password")
	cmd.Flags().StringVar(&seed.Phone, "phone", seed.Phone, "contact phone")

	return cmd
}

func runInitBusiness(ctx context.Context, configFile string, seed service.BusinessSeed) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, configFile)
	if err != nil {
		return err
	}
	defer a.Close()

	business, created, err := a.svc.InitBusiness(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to initialize business: %w", err)
	}
	if !created {
		fmt.Printf("Business already exists: %s\n", business.BusinessName)
		return nil
	}

	fmt.Println("Business account created successfully!")
	fmt.Printf("Email: %s\n", business.Email)
	fmt.Printf("Starter rewards: %d\n", len(service.DefaultRewards()))
	return nil
}
