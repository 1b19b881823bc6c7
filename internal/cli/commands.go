package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asungur/beacon"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// taxonomyFlags registers the seven taxonomy levels and the four floats.
type taxonomyFlags struct {
	levels [7]string
	floats [4]float64
}

var taxonomyNames = [7]string{"kingdom", "phylum", "class", "order", "family", "genus", "species"}

func (t *taxonomyFlags) register(fs *pflag.FlagSet) {
	for i, name := range taxonomyNames {
		fs.StringVar(&t.levels[i], name, "", "taxonomy "+name)
	}
	for i := range t.floats {
		fs.Float64Var(&t.floats[i], fmt.Sprintf("float%d", i+1), 0, fmt.Sprintf("numeric value %d", i+1))
	}
}

// props converts the flags into a property bag, leaving unset floats out.
func (t *taxonomyFlags) props(fs *pflag.FlagSet) beacon.Props {
	p := beacon.Props{}
	for i, name := range taxonomyNames {
		if t.levels[i] != "" {
			p[name] = t.levels[i]
		}
	}
	for i, v := range t.floats {
		name := fmt.Sprintf("float%d", i+1)
		if fs.Changed(name) {
			p[name] = v
		}
	}
	return p
}

func (a *app) eventCommand() *cobra.Command {
	var tax taxonomyFlags
	cmd := &cobra.Command{
		Use:     "event",
		Short:   "Enqueue an event",
		Example: `  beacon event --kingdom ui --phylum click --float1 3 --wait 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			props := tax.props(cmd.Flags())
			return a.withClient(func(c *beacon.Client) error {
				rec, err := c.Event(props)
				if err != nil {
					return err
				}
				success(a.stdout, "Event %d enqueued", rec.EventIndex)
				return nil
			})
		},
	}
	tax.register(cmd.Flags())
	return cmd
}

func (a *app) economyCommand() *cobra.Command {
	var (
		tax       taxonomyFlags
		currency  string
		amount    float64
		spendType string
	)
	cmd := &cobra.Command{
		Use:     "economy",
		Short:   "Enqueue an economy (spend) event",
		Example: `  beacon economy --currency USD --amount 4.99 --spend-type iap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			props := tax.props(cmd.Flags())
			props["spend_currency"] = currency
			if cmd.Flags().Changed("amount") {
				props["spend_amount"] = amount
			}
			if spendType != "" {
				props["spend_type"] = spendType
			}
			return a.withClient(func(c *beacon.Client) error {
				rec, err := c.EconomyEvent(props)
				if err != nil {
					return err
				}
				success(a.stdout, "Economy event %d enqueued", rec.EventIndex)
				return nil
			})
		},
	}
	tax.register(cmd.Flags())
	cmd.Flags().StringVar(&currency, "currency", "", "spend currency (required)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "spend amount (required)")
	cmd.Flags().StringVar(&spendType, "spend-type", "", "spend type")
	return cmd
}

func (a *app) messageCommand() *cobra.Command {
	var (
		tax        taxonomyFlags
		sender     string
		recipients []string
	)
	cmd := &cobra.Command{
		Use:     "message",
		Short:   "Enqueue a message send event",
		Example: `  beacon message --sender alice --recipient bob --recipient carol`,
		RunE: func(cmd *cobra.Command, args []string) error {
			props := tax.props(cmd.Flags())
			props["sender_tag"] = sender
			props["recipient_tags"] = recipients
			return a.withClient(func(c *beacon.Client) error {
				rec, err := c.MessageSendEvent(props)
				if err != nil {
					return err
				}
				success(a.stdout, "Message event %d enqueued for %d recipients", rec.EventIndex, len(rec.RecipientTags))
				return nil
			})
		},
	}
	tax.register(cmd.Flags())
	cmd.Flags().StringVar(&sender, "sender", "", "sender tag (required)")
	cmd.Flags().StringArrayVar(&recipients, "recipient", nil, "recipient tag, repeatable (at least one required)")
	return cmd
}

func (a *app) logCommand() *cobra.Command {
	var in beacon.LogInput
	cmd := &cobra.Command{
		Use:     "log [words...]",
		Short:   "Enqueue a log line",
		Example: `  beacon log --level error --hostname web-1 "payment failed"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Line = strings.Join(args, " ")
			return a.withClient(func(c *beacon.Client) error {
				if err := c.Track(in); err != nil {
					return err
				}
				success(a.stdout, "Log line enqueued")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Level, "level", "", "log level")
	cmd.Flags().StringVar(&in.Hostname, "hostname", "", "hostname")
	cmd.Flags().StringVar(&in.Filename, "filename", "", "source file")
	cmd.Flags().StringVar(&in.RemoteAddress, "remote-address", "", "remote address")
	return cmd
}

func (a *app) flushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Deliver pending records now",
		Long:  "Start delivery immediately, ignoring any retry delay. Combine with --wait to block until the queues drain.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(c *beacon.Client) error {
				if err := c.Flush(); err != nil {
					if errors.Is(err, beacon.ErrNotReady) {
						warn(a.stdout, "Client disabled by the collector; nothing was sent")
						return nil
					}
					return err
				}
				events, logs := c.Pending()
				info(a.stdout, "Flush started (%d events, %d logs pending)", events, logs)
				return nil
			})
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show identity and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspectClient(func(c *beacon.Client) error {
				return printStatus(a.stdout, a.output, c.Status())
			})
		},
	}
}

func (a *app) exportCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:       "export {events|logs}",
		Short:     "Write pending records as JSON or CSV",
		Example:   `  beacon export events --format csv > pending.csv`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"events", "logs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var f beacon.ExportFormat
			switch format {
			case "json":
				f = beacon.JSON
			case "csv":
				f = beacon.CSV
			default:
				return fmt.Errorf("unknown export format %q", format)
			}
			return a.inspectClient(func(c *beacon.Client) error {
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				return c.Export(ctx, a.stdout, args[0], f)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "export format: json, csv")
	return cmd
}
