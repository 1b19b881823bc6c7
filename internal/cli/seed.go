package cli

import (
	"github.com/asungur/beacon"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
)

func (a *app) seedCommand() *cobra.Command {
	var (
		count int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Enqueue generated sample records",
		Long:  "Generate a mix of events, economy events, message sends and logs for exercising a collector.",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := sampleInputs(gofakeit.New(seed), count)
			return a.withClient(func(c *beacon.Client) error {
				for _, in := range inputs {
					if err := c.Track(in); err != nil {
						return err
					}
				}
				events, logs := c.Pending()
				success(a.stdout, "Seeded %d records (%d events, %d logs pending)", len(inputs), events, logs)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 20, "number of records to generate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks a random one)")
	return cmd
}

// sampleInputs cycles through the four record kinds.
func sampleInputs(faker *gofakeit.Faker, n int) []beacon.Input {
	inputs := make([]beacon.Input, 0, n)
	for i := 0; i < n; i++ {
		ev := sampleEvent(faker)
		switch i % 4 {
		case 0:
			inputs = append(inputs, ev)
		case 1:
			inputs = append(inputs, beacon.EconomyInput{
				EventInput: ev,
				Currency:   faker.CurrencyShort(),
				Amount:     faker.Price(0.99, 99.99),
				SpendType:  faker.RandomString([]string{"iap", "subscription", "gift"}),
			})
		case 2:
			recipients := make([]string, faker.IntRange(1, 3))
			for j := range recipients {
				recipients[j] = faker.Username()
			}
			inputs = append(inputs, beacon.MessageSendInput{
				EventInput:    ev,
				SenderTag:     faker.Username(),
				RecipientTags: recipients,
			})
		default:
			ms := faker.Float64Range(1, 2000)
			inputs = append(inputs, beacon.LogInput{
				Line:          faker.HackerPhrase(),
				Hostname:      faker.DomainName(),
				Level:         faker.RandomString([]string{"debug", "info", "warn", "error"}),
				RemoteAddress: faker.IPv4Address(),
				ResponseMs:    &ms,
			})
		}
	}
	return inputs
}

func sampleEvent(faker *gofakeit.Faker) beacon.EventInput {
	f := faker.Float64Range(0, 100)
	return beacon.EventInput{
		Taxonomy: beacon.Taxonomy{
			Kingdom: faker.RandomString([]string{"ui", "game", "shop", "social"}),
			Phylum:  faker.Verb(),
			Class:   faker.Noun(),
		},
		Float1: &f,
	}
}
