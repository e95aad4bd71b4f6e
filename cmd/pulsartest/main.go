package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsarlabs/pulsartest/cluster/docker"
	"github.com/pulsarlabs/pulsartest/pulsar"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "pulsartest",
		Usage: "run an ephemeral Pulsar cluster in local containers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "cluster-name",
				Usage: "Name of the Pulsar cluster.",
				Value: "test",
			},
			&cli.StringFlag{
				Name:  "spec",
				Usage: "Path to a YAML cluster spec. Flags override its fields.",
			},
			&cli.StringFlag{
				Name:  "image",
				Usage: "Pulsar image to run on every node.",
			},
			&cli.IntFlag{
				Name:  "bookies",
				Usage: "Number of bookies.",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  "brokers",
				Usage: "Number of brokers.",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of function workers.",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "function-runtime",
				Usage: "Function worker runtime. One of [process,thread].",
				Value: "process",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level, including container output.",
			},
		},
		Action: func(cctx *cli.Context) error {
			spec := pulsar.DefaultSpec(cctx.String("cluster-name"))
			if path := cctx.String("spec"); path != "" {
				var err error
				spec, err = pulsar.LoadSpecFile(path)
				if err != nil {
					return err
				}
				if spec.ClusterName == "" {
					spec.ClusterName = cctx.String("cluster-name")
				}
			}
			if cctx.IsSet("cluster-name") {
				spec.ClusterName = cctx.String("cluster-name")
			}
			if cctx.IsSet("image") {
				spec.Image = cctx.String("image")
			}
			if cctx.IsSet("bookies") {
				spec.NumBookies = cctx.Int("bookies")
			}
			if cctx.IsSet("brokers") {
				spec.NumBrokers = cctx.Int("brokers")
			}
			if cctx.IsSet("workers") {
				spec.NumFunctionWorkers = cctx.Int("workers")
			}
			if cctx.IsSet("function-runtime") {
				spec.FunctionRuntime = pulsar.FunctionRuntime(cctx.String("function-runtime"))
			}

			var opts []pulsar.Option
			if cctx.Bool("verbose") {
				logger, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("instantiating logger: %w", err)
				}
				rt, err := docker.NewRuntime()
				if err != nil {
					return fmt.Errorf("building Docker runtime: %w", err)
				}
				opts = append(opts,
					pulsar.WithLogger(logger.Sugar()),
					pulsar.WithRuntime(rt.WithLogger(logger.Sugar())))
			}

			ctx := cctx.Context
			c, err := pulsar.NewCluster(ctx, spec, opts...)
			if err != nil {
				return fmt.Errorf("building cluster: %w", err)
			}
			defer c.Stop(context.Background())

			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("starting cluster: %w", err)
			}

			serviceURL, err := c.PlainTextServiceURL(ctx)
			if err != nil {
				return err
			}
			httpURL, err := c.HTTPServiceURL(ctx)
			if err != nil {
				return err
			}
			zk, err := c.ZKConnectString(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("service URL:      %s\n", serviceURL)
			fmt.Printf("HTTP service URL: %s\n", httpURL)
			fmt.Printf("ZooKeeper:        %s\n", zk)
			fmt.Println("press ctrl-c to stop the cluster")

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			<-sigs
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
