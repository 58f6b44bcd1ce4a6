package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zelosify/zelosify/server/internal/database"
	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/internal/openings"
	"github.com/zelosify/zelosify/server/internal/openings/repository"
	"github.com/zelosify/zelosify/server/internal/users"
)

var sampleOpenings = []openings.Opening{
	{Title: "Data Analyst", Location: "On-site (Manchester)", ContractType: "3 Months", ExperienceMin: 1, ExperienceMax: 4, Status: openings.StatusOpen},
	{Title: "UX Designer", Location: "Remote", ContractType: "6 Months", ExperienceMin: 2, ExperienceMax: 6, Status: openings.StatusOnHold},
	{Title: "Backend Engineer", Location: "Hybrid (London)", ContractType: "12 Months", ExperienceMin: 3, ExperienceMax: 8, Status: openings.StatusClosed},
	{Title: "Frontend Developer", Location: "On-site (Birmingham)", ContractType: "9 Months", ExperienceMin: 2, ExperienceMax: 5, Status: openings.StatusOpen},
	{Title: "Cloud Architect", Location: "Remote", ContractType: "12 Months", ExperienceMin: 5, ExperienceMax: 10, Status: openings.StatusOnHold},
	{Title: "DevOps Engineer", Location: "On-site (Liverpool)", ContractType: "12 Months", ExperienceMin: 3, ExperienceMax: 6, Status: openings.StatusOpen},
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var tenantID, company string
	openingsCmd := &cobra.Command{
		Use:   "openings",
		Short: "Upsert a tenant and insert sample openings owned by its hiring manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := seedOpenings(ctx, pool, tenantID, company, time.Now().UTC(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			cmd.Printf("Seeded %d openings for tenant %s.\n", n, tenantID)
			return nil
		},
	}
	openingsCmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id to seed.")
	openingsCmd.Flags().StringVar(&company, "company", "", "Company name stored on the tenant.")
	_ = openingsCmd.MarkFlagRequired("tenant")
	_ = openingsCmd.MarkFlagRequired("company")

	seedCmd.AddCommand(openingsCmd)
	return seedCmd
}

// seedOpenings needs an existing hiring manager in the tenant; it never
// creates users.
func seedOpenings(ctx context.Context, db database.PgxIface, tenantID, company string, now time.Time, out io.Writer) (int, error) {
	if _, err := db.Exec(ctx, `INSERT INTO tenants (tenant_id, company_name) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET company_name = EXCLUDED.company_name`, tenantID, company); err != nil {
		return 0, fmt.Errorf("upsert tenant: %w", err)
	}

	manager, err := users.NewPostgresUserRepository(db).FindByRole(ctx, tenantID, models.RoleHiringManager)
	if err != nil {
		return 0, fmt.Errorf("find hiring manager: %w", err)
	}
	if manager == nil {
		return 0, fmt.Errorf("no hiring manager found for tenant %s: create one before seeding openings", tenantID)
	}
	fmt.Fprintf(out, "Using hiring manager %s (%s)\n", manager.ID, manager.Email)

	repo := repository.NewPostgresRepo(db)
	for i := range sampleOpenings {
		o := sampleOpenings[i]
		o.TenantID = tenantID
		o.HiringManagerID = manager.ID
		o.PostedDate = now.Add(-time.Duration(i) * 24 * time.Hour)
		if err := repo.CreateOpening(ctx, &o); err != nil {
			return i, err
		}
	}
	return len(sampleOpenings), nil
}
