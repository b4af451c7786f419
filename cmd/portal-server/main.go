package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/medportal/portal/internal/config"
	"github.com/medportal/portal/internal/domain/account"
	"github.com/medportal/portal/internal/domain/sandbox"
	"github.com/medportal/portal/internal/platform/db"
	"github.com/medportal/portal/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "Medical portal API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg.Env)
	pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, poolOptions(cfg), logger)
	if err != nil {
		return nil, nil, err
	}

	if dir != "" {
		return db.NewDirMigrator(pool, dir), pool.Close, nil
	}
	return db.NewMigrator(pool, migrations.FS), pool.Close, nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a patient's medical record as PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawID, _ := cmd.Flags().GetString("patient")
			outDir, _ := cmd.Flags().GetString("out")
			patientID, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("--patient must be a patient id: %w", err)
			}

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.services.record.Export(cmd.Context(), patientID)
			if err != nil {
				return err
			}
			path, err := writeExport(outDir, res.Filename, res.Data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages)\n", path, res.Pages)
			return nil
		},
	}
	cmd.Flags().String("patient", "", "Patient id")
	cmd.Flags().String("out", ".", "Output directory")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func writeExport(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage portal accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a patient or doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := createInputFromFlags(cmd)
			if err != nil {
				return err
			}

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			a, err := app.services.accounts.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s account %s (%s)\n", a.Role, a.ID, a.Email)
			return nil
		},
	}
	f := createCmd.Flags()
	f.String("email", "", "Login email")
	f.String("password", "", "Initial password (at least 8 characters)")
	f.String("role", "patient", "patient or doctor")
	f.String("name", "", "Full name")
	f.String("cnp", "", "Personal numeric code (patients)")
	f.String("dob", "", "Date of birth, YYYY-MM-DD")
	f.String("gender", "", "Gender")
	f.String("blood-type", "", "Blood type, e.g. A+")
	f.String("specialization", "", "Specialization (doctors)")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")
	_ = createCmd.MarkFlagRequired("name")

	cmd.AddCommand(createCmd)
	return cmd
}

func createInputFromFlags(cmd *cobra.Command) (account.CreateInput, error) {
	f := cmd.Flags()
	get := func(name string) string {
		v, _ := f.GetString(name)
		return v
	}

	dob, err := account.ParseDate(get("dob"))
	if err != nil {
		return account.CreateInput{}, fmt.Errorf("--dob: %w", err)
	}
	return account.CreateInput{
		Email:    get("email"),
		Password: get("password"),
		Role:     get("role"),
		FullName: get("name"),
		Profile: account.Profile{
			CNP:            get("cnp"),
			DateOfBirth:    dob,
			Gender:         get("gender"),
			BloodType:      get("blood-type"),
			Specialization: get("specialization"),
		},
	}, nil
}

func seedCmd() *cobra.Command {
	def := sandbox.DefaultSeedConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill a development database with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := seedConfigFromFlags(cmd)
			if err != nil {
				return err
			}

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			if app.cfg.IsProduction() {
				return fmt.Errorf("refusing to seed demo data in production")
			}

			res, err := sandbox.NewSeeder(cfg, app.services.accounts, app.services.clinical, app.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d doctors, %d patients, %d consultations, %d lab results in %s\n",
				res.Doctors, res.Patients, res.Consultations, res.LabResults, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("doctors", def.Doctors, "Number of doctor accounts")
	f.Int("patients", def.Patients, "Number of patient accounts")
	f.Int("visits", def.VisitsPerPatient, "Consultations per patient")
	f.Int("labs", def.LabsPerPatient, "Lab results per patient")
	f.Int64("seed", def.Seed, "Random seed")
	f.String("password", def.Password, "Password for every demo account")
	return cmd
}

func seedConfigFromFlags(cmd *cobra.Command) (sandbox.SeedConfig, error) {
	f := cmd.Flags()
	cfg := sandbox.SeedConfig{}
	cfg.Doctors, _ = f.GetInt("doctors")
	cfg.Patients, _ = f.GetInt("patients")
	cfg.VisitsPerPatient, _ = f.GetInt("visits")
	cfg.LabsPerPatient, _ = f.GetInt("labs")
	cfg.Seed, _ = f.GetInt64("seed")
	cfg.Password, _ = f.GetString("password")
	if cfg.Doctors < 0 || cfg.Patients < 0 || cfg.VisitsPerPatient < 0 || cfg.LabsPerPatient < 0 {
		return cfg, fmt.Errorf("counts must not be negative")
	}
	if len(cfg.Password) < account.MinPasswordLength {
		return cfg, fmt.Errorf("--password must be at least %d characters", account.MinPasswordLength)
	}
	return cfg, nil
}

// openApp connects the services used by the one-shot commands.
func openApp(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newApplication(ctx, cfg, newLogger(cfg.Env))
}
