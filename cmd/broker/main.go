package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/sirupsen/logrus"
)

func main() {
	address := flag.String("addr", ":1883", "tcp listen address")
	filter := flag.String("filter", "#", "topic filter to log")
	retain := flag.String("publish-topic", "", "publish a retained message on this topic at startup")
	payload := flag.String("publish-payload", "", "payload of the retained message")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: *address})
	err := server.AddListener(tcp)
	if err != nil {
		log.Fatal(err)
	}

	err = server.Serve()
	if err != nil {
		log.Fatal(err)
	}

	err = server.Subscribe(*filter, 1, func(cl *mqtt.Client, sub packets.Subscription, pk packets.Packet) {
		logrus.WithFields(logrus.Fields{
			"client": cl.ID,
			"topic":  pk.TopicName,
		}).Info(string(pk.Payload))
	})
	if err != nil {
		log.Fatal(err)
	}

	if *retain != "" {
		err = server.Publish(*retain, []byte(*payload), true, 0)
		if err != nil {
			log.Fatal(err)
		}
	}

	<-ctx.Done()
	server.Close()
}
