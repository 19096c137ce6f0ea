package main

import "github.com/vibast-solutions/ms-go-messaging-webhooks/cmd"

func main() {
	cmd.Execute()
}
