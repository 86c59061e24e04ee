package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/fireup-dev/fireup/service/nats"
	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams ledger commit events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Subscribe to ledger commit events",
		Description: `Subscribe to commit events published to NATS JetStream.

Events are published to the subject commits.{type}, where type is one of
deposit, withdrawal, or transfer. By default all types are streamed.

Example:
  fireup nats subscribe --type transfer --must-jq '.amount | tonumber > 100'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Only stream one transaction type (deposit, withdrawal, transfer)",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
				Aliases: []string{"jq"},
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "fireup-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if t := c.String("type"); t != "" {
				subject = "commits." + t
			}

			// Compile jq filters
			jqFilters := c.StringSlice("must-jq")
			compiledJQFilters := make([]*gojq.Code, len(jqFilters))
			for i, filter := range jqFilters {
				query, err := gojq.Parse(filter)
				if err != nil {
					return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
				}
				compiledJQFilters[i], err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
				}
			}

			return streamCommits(
				c.String("nats-url"),
				subject,
				c.Bool("durable"),
				c.String("consumer-name"),
				c.Bool("json"),
				compiledJQFilters,
			)
		},
	}
}

// streamCommits connects to NATS and prints commit events as they arrive.
func streamCommits(natsURL, subject string, durable bool, consumerName string, jsonOutput bool, jqFilters []*gojq.Code) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Printf("Subscribing to: %s\n", subject)
		fmt.Printf("   NATS: %s\n", natsURL)
		if durable {
			fmt.Printf("   Consumer: %s (durable)\n", consumerName)
		}
		fmt.Printf("\nWaiting for commit events... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	go func() {
		_, _ = cons.Consume(func(msg jetstream.Msg) {
			msgChan <- msg
		})
	}()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.CommitEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				if !jsonOutput {
					fmt.Fprintf(os.Stderr, "failed to decode event: %v\n", err)
				}
				msg.Ack()
				continue
			}

			if !matchesFilters(msg.Data(), jqFilters) {
				msg.Ack()
				continue
			}

			count++
			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			} else {
				fmt.Printf("Commit event (#%d)\n", count)
				fmt.Printf("   Reference: %s\n", event.Reference)
				fmt.Printf("   Ledger ID: %s\n", event.LedgerID)
				fmt.Printf("   Type: %s\n", event.Type)
				fmt.Printf("   %s -> %s\n", event.SourceName, event.DestinationName)
				fmt.Printf("   Amount: %s\n", event.Amount)
				if event.CategoryName != "" {
					fmt.Printf("   Category: %s\n", event.CategoryName)
				}
				fmt.Printf("   Published: %s\n\n", event.PublishedAt.Format(time.RFC3339))
			}
			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Printf("\nReceived %d commit event(s)\n", count)
			}
			return nil
		}
	}
}

// matchesFilters runs each compiled jq filter against the raw event JSON.
// All filters must evaluate to a truthy value.
func matchesFilters(data []byte, filters []*gojq.Code) bool {
	if len(filters) == 0 {
		return true
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}

	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy follows jq semantics: false and null are falsy, everything else
// is truthy.
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
