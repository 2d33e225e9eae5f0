package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"github.com/acksell/crm/config"
)

var doctorTimeout time.Duration

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check AWS credentials, the table and the attachment bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return err
		}
		return runChecks(ctx, cmd.OutOrStdout(), doctorChecks(awsCfg))
	},
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func doctorChecks(awsCfg aws.Config) []check {
	checks := []check{{
		name: "aws identity",
		run: func(ctx context.Context) (string, error) {
			out, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
			if err != nil {
				return "", err
			}
			return aws.ToString(out.Arn), nil
		},
	}}
	if cfg.Store.Driver == config.DriverDynamoDB {
		checks = append(checks, check{
			name: "table " + cfg.Store.Table,
			run: func(ctx context.Context) (string, error) {
				return "active, schema matches", newDynamoClient(cfg, awsCfg).Verify(ctx)
			},
		})
	}
	checks = append(checks, check{
		name: "bucket " + cfg.Storage.Bucket,
		run: func(ctx context.Context) (string, error) {
			objects, err := newObjectStore(cfg, awsCfg)
			if err != nil {
				return "", err
			}
			return "reachable", objects.Reachable(ctx)
		},
	})
	return checks
}

// runChecks runs every check and reports all failures.
func runChecks(ctx context.Context, w io.Writer, checks []check) error {
	var failed []error
	for _, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			fmt.Fprintf(w, "FAIL  %s: %v\n", c.name, err)
			failed = append(failed, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		fmt.Fprintf(w, "ok    %s: %s\n", c.name, detail)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d check(s) failed: %w", len(failed), errors.Join(failed...))
	}
	return nil
}

func init() {
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 15*time.Second, "overall timeout for the checks")
	rootCmd.AddCommand(doctorCmd)
}
