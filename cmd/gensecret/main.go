package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// 32 random bytes, enough for the HS256 signing key
const secretKeyBytesLen = 32

func main() {
	b := make([]byte, secretKeyBytesLen)

	if _, err := rand.Read(b); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(b))
}
