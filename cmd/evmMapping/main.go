package main

import (
	"log"
	"os"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/config"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// a missing .env is fine, flags and the process environment still apply
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "evm-mapping",
		Usage: "Drive Substrate accounts from EVM keys through signed meta-calls",
		Description: `Maps secp256k1 keys held by EVM wallets onto Substrate accounts and lets them
authorize runtime calls with EIP-712 signatures.

Typical flow:
- evm-mapping address                      show the account behind your key
- evm-mapping cheque sign --deadline ...   sponsor fees for someone else
- evm-mapping meta-call --remark hello     sign and submit a call`,
		Version: "1.0.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "address",
				Usage:  "Show the EVM address, public key and Substrate account of the signer",
				Action: addressCommand,
			},
			{
				Name:  "recover",
				Usage: "Recover the public key and accounts behind a signature",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "signature",
						Aliases:  []string{"sig"},
						Usage:    "65 byte r||s||v signature (hex)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "digest",
						Usage: "32 byte typed data digest (hex)",
					},
					&cli.StringFlag{
						Name:  "message",
						Usage: "Personal message that was signed",
					},
				},
				Action: recoverCommand,
			},
			{
				Name:   "typed-data",
				Usage:  "Print the EIP-712 typed data of a meta-call without signing it",
				Flags:  callFlags(),
				Action: typedDataCommand,
			},
			{
				Name:   "meta-call",
				Usage:  "Sign a call with the EVM key and submit it through the mapping module",
				Flags:  callFlags(),
				Action: metaCallCommand,
			},
			{
				Name:  "cheque",
				Usage: "Issue and manage sponsor cheques",
				Subcommands: []*cli.Command{
					{
						Name:   "sign",
						Usage:  "Sign a cheque with the configured sponsor key",
						Flags:  chequeSignFlags(),
						Action: chequeSignCommand,
					},
					{
						Name:  "store",
						Usage: "Verify a signed cheque and add it to the cheque store",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "cheque",
								Usage:    "Signed cheque encoding (hex)",
								Required: true,
							},
						},
						Action: chequeStoreCommand,
					},
					{
						Name:  "list",
						Usage: "List stored cheques",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "signer",
								Usage: "Only list cheques of this sponsor (SS58 or hex account id)",
							},
						},
						Action: chequeListCommand,
					},
					{
						Name:  "prune",
						Usage: "Remove cheques whose deadline has passed",
						Flags: []cli.Flag{
							&cli.UintFlag{
								Name:  "block",
								Usage: "Block number to prune against (default: latest block of the node)",
							},
						},
						Action: chequePruneCommand,
					},
				},
			},
			{
				Name:  "sponsor",
				Usage: "Manage sponsor keys",
				Subcommands: []*cli.Command{
					{
						Name:  "create-key",
						Usage: "Create a secp256k1 sponsor key in AWS KMS",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "name",
								Usage:    "Name of the new key",
								Required: true,
							},
						},
						Action: sponsorCreateKeyCommand,
					},
					{
						Name:   "info",
						Usage:  "Show the account of the configured sponsor key",
						Action: sponsorInfoCommand,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func globalFlags() []cli.Flag {
	defaults := config.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "node-url",
			Aliases: []string{"node"},
			Usage:   "Substrate node websocket or HTTP endpoint",
			Value:   defaults.NodeUrl,
			EnvVars: []string{config.EnvNodeUrl},
		},
		&cli.UintFlag{
			Name:    "ss58-prefix",
			Usage:   "SS58 address prefix of the chain",
			Value:   uint(address.DefaultSS58Prefix),
			EnvVars: []string{config.EnvSS58Prefix},
		},
		&cli.StringFlag{
			Name:    "protocol-version",
			Usage:   "Expected mapping protocol version: 1 (hash based), 2 (transparent), empty to follow the chain",
			EnvVars: []string{config.EnvProtocolVersion},
		},
		&cli.StringFlag{
			Name:    "transparent-tag",
			Usage:   "Tag of transparent account ids (text or 0x hex)",
			Value:   defaults.TransparentTag,
			EnvVars: []string{config.EnvTransparentTag},
		},
		&cli.StringFlag{
			Name:    "transparent-tag-position",
			Usage:   "Where the tag sits in transparent account ids: suffix or prefix",
			Value:   defaults.TransparentTagPosition,
			EnvVars: []string{config.EnvTransparentTagPosition},
		},
		&cli.Float64Flag{
			Name:    "requests-per-second",
			Usage:   "Rate limit for node requests, 0 for unlimited",
			EnvVars: []string{config.EnvRequestsPerSecond},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			EnvVars: []string{config.EnvDebug},
		},
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "secp256k1 private key (hex) that signs meta-calls",
			EnvVars: []string{config.EnvPrivateKey},
		},
		&cli.StringFlag{
			Name:    "wallet-url",
			Usage:   "JSON-RPC endpoint of a wallet or remote signer, used when no private key is set",
			EnvVars: []string{config.EnvWalletUrl},
		},
		&cli.StringFlag{
			Name:    "wallet-account",
			Usage:   "Wallet account to sign with (default: first account of the wallet)",
			EnvVars: []string{config.EnvWalletAccount},
		},
		&cli.StringFlag{
			Name:    "typed-data-method",
			Usage:   "RPC method the wallet exposes for typed data",
			EnvVars: []string{config.EnvTypedDataMethod},
		},
		&cli.StringFlag{
			Name:    "sponsor-secret-uri",
			Usage:   "sr25519 secret URI or mnemonic of the sponsor",
			EnvVars: []string{config.EnvSponsorSecretUri},
		},
		&cli.StringFlag{
			Name:    "sponsor-kms-key-id",
			Usage:   "AWS KMS key id or alias of a secp256k1 sponsor key",
			EnvVars: []string{config.EnvSponsorKmsKeyId},
		},
		&cli.StringFlag{
			Name:    "sponsor-private-key",
			Usage:   "secp256k1 sponsor private key (hex)",
			EnvVars: []string{config.EnvSponsorPrivateKey},
		},
		&cli.StringFlag{
			Name:    "sponsor-environment",
			Usage:   "Environment name used to tag and alias KMS sponsor keys",
			EnvVars: []string{config.EnvSponsorEnvironment},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region override for KMS sponsor keys",
			EnvVars: []string{config.EnvAwsRegion},
		},
		&cli.StringFlag{
			Name:    "persistence-type",
			Usage:   "Cheque store backend: memory, badger or redis",
			Value:   string(defaults.Persistence.Type),
			EnvVars: []string{config.EnvPersistenceType},
		},
		&cli.StringFlag{
			Name:    "badger-path",
			Usage:   "Data directory of the badger cheque store",
			EnvVars: []string{config.EnvBadgerPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "host:port of the redis cheque store",
			EnvVars: []string{config.EnvRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Password of the redis cheque store",
			EnvVars: []string{config.EnvRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Database number of the redis cheque store",
			EnvVars: []string{config.EnvRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix for every redis key",
			EnvVars: []string{config.EnvRedisKeyPrefix},
		},
	}
}

func callFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "remark",
			Usage: "Text for a System.remark_with_event call",
		},
		&cli.StringFlag{
			Name:  "call",
			Usage: "Runtime call as Module.function, used with --arg",
		},
		&cli.StringSliceFlag{
			Name:  "arg",
			Usage: "Hex encoded SCALE argument of --call, repeatable and in order",
		},
		&cli.Uint64Flag{
			Name:  "nonce",
			Usage: "Meta-call nonce (default: next nonce from the chain)",
		},
		&cli.StringFlag{
			Name:  "tip",
			Usage: "Tip in the chain's smallest unit",
		},
		&cli.StringFlag{
			Name:  "cheque",
			Usage: "Signed cheque encoding (hex) sponsoring the call",
		},
		&cli.StringFlag{
			Name:  "cheque-key",
			Usage: "Content key of a stored cheque sponsoring the call",
		},
	}
}

func chequeSignFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{
			Name:     "deadline",
			Usage:    "Last block number the cheque can be used in",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "min-balance",
			Usage: "Balance the sponsor must keep after paying fees",
			Value: "0",
		},
		&cli.StringFlag{
			Name:  "max-tip",
			Usage: "Largest tip the sponsor will pay",
			Value: "0",
		},
		&cli.StringFlag{
			Name:  "only-account",
			Usage: "Restrict the cheque to one account (SS58 or hex account id)",
		},
		&cli.Uint64Flag{
			Name:  "only-nonce",
			Usage: "Restrict the cheque to one account nonce",
		},
		&cli.StringFlag{
			Name:  "only-call",
			Usage: "Restrict the cheque to one call (hex call bytes)",
		},
		&cli.BoolFlag{
			Name:  "store",
			Usage: "Add the signed cheque to the cheque store",
		},
	}
}
