package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/example/food-order-service/internal/adapter/natsstan"
	"github.com/example/food-order-service/internal/logger"
	"github.com/example/food-order-service/internal/usecase"
)

func main() {
	log, err := logger.New("food-order-publisher", "info", logger.FormatText, os.Stderr)
	if err != nil {
		panic(err)
	}
	if err := newApp(os.Stdin, log).Run(os.Args); err != nil {
		log.WithError(err).Fatal("publish failed")
	}
}

func newApp(in io.Reader, log logrus.FieldLogger) *cli.App {
	return &cli.App{
		Name:  "publisher",
		Usage: "read a place-order command from stdin and publish it to NATS Streaming",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cluster", Value: "food-cluster", EnvVars: []string{"STAN_CLUSTER_ID"}},
			&cli.StringFlag{Name: "client", Value: "food-publisher", EnvVars: []string{"STAN_PUB_ID"}},
			&cli.StringFlag{Name: "nats-url", Value: "nats://localhost:4222", EnvVars: []string{"NATS_URL"}},
			&cli.StringFlag{Name: "subject", Value: "orders.place", EnvVars: []string{"STAN_SUBJECT"}},
		},
		Action: func(c *cli.Context) error {
			raw, err := readCommand(in)
			if err != nil {
				return err
			}
			pub, err := natsstan.NewPublisher(c.String("cluster"), c.String("client"), c.String("nats-url"), c.String("subject"))
			if err != nil {
				return err
			}
			defer pub.Close()

			if err := pub.Publish(raw); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"bytes": len(raw), "subject": c.String("subject")}).Info("published")
			return nil
		},
	}
}

// readCommand проверяет, что на входе команда размещения заказа, и
// возвращает её в каноническом виде.
func readCommand(in io.Reader) ([]byte, error) {
	var cmd usecase.PlaceOrderCommand
	if err := json.NewDecoder(in).Decode(&cmd); err != nil {
		return nil, errors.Wrap(err, "read json from stdin")
	}
	if cmd.VendorID == uuid.Nil || cmd.ConsumerID == uuid.Nil {
		return nil, errors.New("vendor_id and consumer_id are required")
	}
	if len(cmd.Foods) == 0 {
		return nil, errors.New("foods are required")
	}
	return json.Marshal(cmd)
}
