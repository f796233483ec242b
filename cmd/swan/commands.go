package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/swanchain/go-swan-sdk/pkg/deployclient"
	"github.com/swanchain/go-swan-sdk/pkg/hardware"
	"github.com/swanchain/go-swan-sdk/pkg/orchestrator"
	"github.com/swanchain/go-swan-sdk/pkg/storage"
	"github.com/swanchain/go-swan-sdk/pkg/swanapi"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
	"github.com/swanchain/go-swan-sdk/pkg/version"
)

func (a *app) apiClient() (*swanapi.Client, error) {
	if len(a.cfg.APIKey) == 0 {
		return nil, swanerr.Errorf(swanerr.KindConfiguration, "API key required")
	}
	return swanapi.New(a.cfg.APIURL, a.cfg.APIKey), nil
}

func (a *app) storageClient() *storage.MCSClient {
	return storage.NewMCSClient(a.cfg.StorageURL, a.cfg.StorageKey())
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify the orchestrator and storage API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.apiClient()
			if err != nil {
				return err
			}
			err = api.Login(cmd.Context())
			if err != nil {
				return err
			}
			if expiry := api.SessionExpiry(); !expiry.IsZero() {
				log.Infof("Session valid until %s", expiry.Local())
			}

			if len(a.cfg.StorageKey()) == 0 {
				return nil
			}
			err = a.storageClient().Login(cmd.Context())
			if err != nil {
				return err
			}
			log.Infof("Authenticated with %s", a.cfg.StorageURL)
			return nil
		},
	}
}

func (a *app) newHardwareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hardware",
		Short: "List hardware configurations, optionally only those serving --region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.apiClient()
			if err != nil {
				return err
			}
			snapshot, err := hardware.NewCatalog(api).FetchAll(cmd.Context())
			if err != nil {
				return err
			}
			configs := snapshot.InRegion(a.cfg.Region)

			return deployclient.WriteOutput(cmd.OutOrStdout(), a.cfg.Output, configs, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tTYPE\tPRICE\tSTATUS\tREGIONS")
				for _, c := range configs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.Type, c.Price, c.Status, strings.Join(c.Regions, ", "))
				}
				return tw.Flush()
			})
		},
	}
}

func (a *app) newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upload --directory to --bucket/--prefix and publish its source manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.cfg.ValidateUpload()
			if err != nil {
				return err
			}
			if a.cfg.DryRun {
				log.Infof("Dry run: not uploading %s to %s/%s", a.cfg.Directory, a.cfg.Bucket, a.cfg.Prefix)
				return nil
			}
			sourceURI, err := deployclient.PublishSources(cmd.Context(), a.cfg, a.storageClient())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sourceURI)
			return err
		},
	}
}

func (a *app) newDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Publish sources if needed, then submit a deployment task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			request, err := deployclient.Prepare(ctx, a.cfg, a.storageClient())
			if err != nil {
				return err
			}

			if a.cfg.PrintPayload {
				payload, err := json.MarshalIndent(request, "", "  ")
				if err != nil {
					return swanerr.ErrorWrap(swanerr.KindInternal, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			}

			if a.cfg.DryRun {
				return nil
			}

			api, err := a.apiClient()
			if err != nil {
				return err
			}
			d := deployclient.Deployer{Client: orchestrator.New(api)}
			result, err := d.Deploy(ctx, a.cfg, request)
			if result != nil && result.Submission != nil {
				fmt.Fprintln(cmd.OutOrStdout(), result.Submission.TaskUUID)
			}
			return err
		},
	}
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status TASK_UUID",
		Short: "Show the state of a deployment task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.apiClient()
			if err != nil {
				return err
			}
			info, err := orchestrator.New(api).GetDeploymentInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return deployclient.WriteOutput(cmd.OutOrStdout(), a.cfg.Output, info, func(w io.Writer) error {
				fmt.Fprintf(w, "task.........: %s\n", info.Task.UUID)
				fmt.Fprintf(w, "state........: %s\n", info.Task.Status)
				fmt.Fprintf(w, "hardware.....: %s\n", info.Task.Detail.Hardware)
				fmt.Fprintf(w, "region.......: %s\n", info.Task.Detail.Region)
				fmt.Fprintf(w, "source.......: %s\n", info.Task.SourceURI)
				for _, url := range info.RealURLs() {
					fmt.Fprintf(w, "url..........: %s\n", url)
				}
				return nil
			})
		},
	}
}

func (a *app) newPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payments",
		Short: "List payments for deployment tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.apiClient()
			if err != nil {
				return err
			}
			payments, err := orchestrator.New(api).GetPaymentInfo(cmd.Context())
			if err != nil {
				return err
			}

			return deployclient.WriteOutput(cmd.OutOrStdout(), a.cfg.Output, payments, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TASK\tAMOUNT\tSTATUS\tTX HASH")
				for _, p := range payments {
					txHash := "-"
					if p.TxHash != nil {
						txHash = *p.TxHash
					}
					fmt.Fprintf(tw, "%s\t%g\t%s\t%s\n", p.TaskUUID, p.Amount, p.Status, txHash)
				}
				return tw.Flush()
			})
		},
	}
}

func (a *app) newTerminateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminate TASK_UUID",
		Short: "Terminate a deployment task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.apiClient()
			if err != nil {
				return err
			}
			return orchestrator.New(api).TerminateTask(cmd.Context(), args[0])
		},
	}
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Version())
			return err
		},
	}
}
