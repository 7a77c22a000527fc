// Command apex-sdk-demo wires the SDK's substrate and EVM adapters against
// whatever endpoints and secrets the environment provides, then exercises a
// single dispatch cycle. It is a wiring demonstration, not a CLI: flags only
// select which chain to exercise, and there is no subcommand tree.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
	"github.com/apex-sdk/apex-sdk-go/pkg/config"
	"github.com/apex-sdk/apex-sdk-go/pkg/sdk"
	"github.com/apex-sdk/apex-sdk-go/pkg/wallet"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting apex-sdk wiring demo")

	var (
		chainName = flag.String("chain", "Ethereum", "destination chain name (see apextypes.KnownChains)")
		to        = flag.String("to", "", "recipient address; defaults to a throwaway address on the chosen chain")
	)
	flag.Parse()

	chain, ok := apextypes.ChainFromName(*chainName)
	if !ok {
		log.Fatalf("unrecognized chain %q", *chainName)
	}
	log.Printf("target chain: %s (%s)", chain.Name, chain.Type)

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = "."
	}
	cfg, err := config.LoadSDKConfig(config.DefaultSDKConfigPath(cfgDir))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.ApplyEnvOverrides()
	secrets := config.LoadEnvSecrets()

	endpoint, ok := cfg.Endpoint(chain.Type.String())
	if !ok {
		endpoint = chain.DefaultEndpoint
		log.Printf("no configured endpoint for %s, falling back to default %s", chain.Type, endpoint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	builder := sdk.NewBuilder().WithTimeout(30 * time.Second)

	var fromAddr apextypes.Address
	switch chain.Type {
	case apextypes.ChainTypeEvm, apextypes.ChainTypeHybrid:
		evmWallet, err := demoEvmWallet(secrets.PrivateKey)
		if err != nil {
			log.Fatalf("failed to build evm wallet: %v", err)
		}
		fromAddr = evmWallet.Address()
		builder = builder.WithEvmEndpoint(endpoint).WithEvmWallet(evmWallet)
	case apextypes.ChainTypeSubstrate:
		subWallet, err := demoSubstrateWallet(secrets.SubstrateSeed)
		if err != nil {
			log.Fatalf("failed to build substrate wallet: %v", err)
		}
		fromAddr = subWallet.Address()
		builder = builder.WithSubstrateEndpoint(endpoint).WithSubstrateWallet(subWallet)
	}

	client, err := builder.Build(ctx)
	if err != nil {
		log.Fatalf("failed to build sdk: %v", err)
	}
	log.Printf("sdk ready: substrate=%v evm=%v", client.IsChainSupported(apextypes.ChainTypeSubstrate), client.IsChainSupported(apextypes.ChainTypeEvm))

	toAddr := fromAddr
	if *to != "" {
		if chain.Type == apextypes.ChainTypeSubstrate {
			toAddr = apextypes.Substrate(*to)
		} else {
			toAddr = apextypes.Evm(*to)
		}
	}

	tx, err := sdk.NewTransactionBuilder().
		From(fromAddr).
		To(toAddr).
		Amount(big.NewInt(1)).
		Chain(chain).
		Build()
	if err != nil {
		log.Fatalf("failed to build transaction: %v", err)
	}

	result, err := client.Execute(ctx, tx)
	if err != nil {
		log.Fatalf("execution failed: %v", err)
	}
	log.Printf("submitted: hash=%s status=%s", result.SourceTxHash, result.Status)

	if err := client.WaitForConfirmation(ctx, result.SourceTxHash, chain.Type, client.Timeout()); err != nil {
		log.Fatalf("confirmation failed: %v", err)
	}
	log.Printf("confirmed: hash=%s", result.SourceTxHash)
}

// demoEvmWallet prefers PRIVATE_KEY from the environment; without one it
// generates a throwaway key so the wiring path still runs end to end.
func demoEvmWallet(privateKeyHex string) (*wallet.EvmWallet, error) {
	if privateKeyHex != "" {
		return wallet.NewEvmFromPrivateKey(privateKeyHex)
	}
	log.Printf("PRIVATE_KEY not set, generating a throwaway EVM wallet")
	return wallet.NewEvmRandom()
}

// demoSubstrateWallet prefers SUBSTRATE_SEED from the environment; without
// one it generates a throwaway key so the wiring path still runs end to end.
func demoSubstrateWallet(seedHex string) (*wallet.SubstrateWallet, error) {
	if seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, err
		}
		return wallet.NewSubstrateFromSeed(seed)
	}
	log.Printf("SUBSTRATE_SEED not set, generating a throwaway substrate wallet")
	return wallet.NewSubstrateRandom()
}
