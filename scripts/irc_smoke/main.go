package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lrstanley/girc"
)

func main() {
	if err := run(); err != nil {
		log.Printf("irc_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "localhost", "gateway host")
	port := flag.Int("port", 6667, "gateway IRC port")
	nick := flag.String("nick", "tester", "chat nickname")
	pass := flag.String("pass", "", "chat password, empty logs in anonymously")
	room := flag.String("room", "#lobby", "channel to join")
	text := flag.String("text", "", "message to send after joining")
	timeout := flag.Duration("timeout", 30*time.Second, "total run time")
	flag.Parse()

	client := girc.New(girc.Config{
		Server:     *server,
		Port:       *port,
		Nick:       *nick,
		User:       *nick,
		Name:       *nick,
		ServerPass: *pass,
	})

	client.Handlers.Add(girc.ALL_EVENTS, func(_ *girc.Client, e girc.Event) {
		fmt.Println(e.String())
	})
	client.Handlers.Add(girc.CONNECTED, func(c *girc.Client, _ girc.Event) {
		c.Cmd.Join(*room)
		if *text != "" {
			c.Cmd.Message(*room, *text)
		}
	})

	time.AfterFunc(*timeout, func() {
		client.Quit("smoke test done")
		client.Close()
	})

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}
