package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/ezmesh/ezmesh/pkg/meshcore/crypto"
)

func main() {
	name := flag.String("name", "", "Channel name (e.g. #ops)")
	password := flag.String("password", "", "Channel password; the key is derived from the name when empty")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "chankey: -name is required")
		flag.Usage()
		os.Exit(2)
	}

	channel := *name
	if channel[0] != '#' {
		channel = "#" + channel
	}

	key := crypto.DeriveChannelKey(*password, channel)

	fmt.Printf("Channel: %s\n", channel)
	fmt.Printf("Key:     %s\n", hex.EncodeToString(key))
	fmt.Printf("Hash:    %02X\n", crypto.ComputeChannelHash(key))
}
