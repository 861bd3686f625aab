// Command udpcat sends and receives datagrams on udp:// URLs.
package main

import "github.com/joshuafuller/udpurl/cmd/udpcat/cmd"

func main() {
	cmd.Execute()
}
