package main

import (
	"WyvernExchange/internal/ingestion"
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/signature"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/joho/godotenv"
)

func usage() {
	fmt.Println("Usage: ordertool <keygen|hash|sign|command> [args]")
	fmt.Println("  keygen                        - generate a signer seed and its account id")
	fmt.Println("  hash <order.json>             - print hash_order and hash_to_sign")
	fmt.Println("  sign <order.json>             - print hashes and a signature by WYVERN_SIGNER_SEED")
	fmt.Println("  command <name> <payload.json> - wrap a command payload in a signed envelope")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  WYVERN_SIGNER_SEED - 0x-prefixed 32-byte seed used by sign and command")
	fmt.Println("  WYVERN_COMMAND_TTL - command lifetime (default 5m, at most 10m)")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: .env not loaded: %v", err)
	}

	switch os.Args[1] {
	case "keygen":
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			log.Fatalf("FATAL: read entropy: %v", err)
		}
		signer, err := signature.NewSignerFromSeed(seed)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		printJSON(map[string]string{
			"seed":    hexutil.Encode(seed),
			"account": signer.Account().Hex(),
		})

	case "hash":
		o := loadOrder()
		printJSON(hashes(&o))

	case "sign":
		o := loadOrder()
		signer := loadSigner()
		if signer.Account() != o.Maker {
			log.Printf("WARN: signer %s is not the order maker %s", signer.Account().Short(), o.Maker.Short())
		}
		out := hashes(&o)
		out["signer"] = signer.Account().Hex()
		out["signature"] = hexutil.Encode(signer.SignOrder(&o))
		printJSON(out)

	case "command":
		if len(os.Args) < 4 {
			usage()
		}
		payload, err := os.ReadFile(os.Args[3])
		if err != nil {
			log.Fatalf("FATAL: read payload: %v", err)
		}
		ttl := 5 * time.Minute
		if v := os.Getenv("WYVERN_COMMAND_TTL"); v != "" {
			if ttl, err = time.ParseDuration(v); err != nil {
				log.Fatalf("FATAL: WYVERN_COMMAND_TTL: %v", err)
			}
		}
		data, err := ingestion.SignCommand(loadSigner(), os.Args[2], payload, time.Now().Add(ttl))
		if err != nil {
			log.Fatalf("FATAL: sign command: %v", err)
		}
		fmt.Println(string(data))

	default:
		usage()
	}
}

func loadSigner() *signature.Signer {
	seed, err := hexutil.Decode(os.Getenv("WYVERN_SIGNER_SEED"))
	if err != nil {
		log.Fatalf("FATAL: WYVERN_SIGNER_SEED: %v", err)
	}
	signer, err := signature.NewSignerFromSeed(seed)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	return signer
}

func loadOrder() order.Order {
	if len(os.Args) < 3 {
		usage()
	}
	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		log.Fatalf("FATAL: read order: %v", err)
	}
	var wire order.JSON
	if err := json.Unmarshal(data, &wire); err != nil {
		log.Fatalf("FATAL: decode order: %v", err)
	}
	o, err := wire.Order()
	if err != nil {
		log.Fatalf("FATAL: invalid order: %v", err)
	}
	return o
}

func hashes(o *order.Order) map[string]string {
	return map[string]string{
		"hash_order":   order.HashOrder(o).Hex(),
		"hash_to_sign": order.HashToSign(o).Hex(),
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("FATAL: encode output: %v", err)
	}
}
