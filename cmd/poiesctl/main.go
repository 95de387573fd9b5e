// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package main provides the poiesctl CLI tool for inspecting PoIES policies
// and difficulty schedules without standing up a full node.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/animica/consensus/difficulty"
	"github.com/animica/consensus/policy"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "policy-root":
		runPolicyRoot(args)
	case "theta-tiers":
		runThetaTiers(args)
	case "help", "-help", "--help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "poiesctl: unknown command %q\n", cmd)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("poiesctl: PoIES policy and difficulty inspection tool")
	fmt.Println("\nUsage: poiesctl <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  policy-root -policy <file> [-json]      Print a policy's sha3-256 root (-json also prints its canonical JSON)")
	fmt.Println("  theta-tiers -theta-micro <n> -k <list>   Print the share-threshold table for a Θ value")
	fmt.Println("  help                                     Show this help message")
}

func runPolicyRoot(args []string) {
	fs := flag.NewFlagSet("policy-root", flag.ExitOnError)
	path := fs.String("policy", "", "path to a policy YAML file")
	showJSON := fs.Bool("json", false, "print the canonical JSON alongside the root")
	fs.Parse(args)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "poiesctl: policy-root requires -policy")
		os.Exit(1)
	}

	pol, err := policy.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "poiesctl: %v\n", err)
		os.Exit(1)
	}

	if *showJSON {
		canon, err := pol.ToCanonicalJSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "poiesctl: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(canon))
	}

	root, err := pol.Root()
	if err != nil {
		fmt.Fprintf(os.Stderr, "poiesctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("policy_root: %s\n", hex.EncodeToString(root[:]))
}

func runThetaTiers(args []string) {
	fs := flag.NewFlagSet("theta-tiers", flag.ExitOnError)
	thetaMicro := fs.Int64("theta-micro", 0, "current Θ in micro-nats")
	factorsCSV := fs.String("k", "2,4,8,16,32,64,128,256", "comma-separated share-tier K factors")
	fs.Parse(args)

	factors, err := parseInt64CSV(*factorsCSV)
	if err != nil {
		fmt.Fprintf(os.Stderr, "poiesctl: %v\n", err)
		os.Exit(1)
	}

	tiers := difficulty.ShareTiers(*thetaMicro, factors)
	fmt.Printf("%-8s %-18s %s\n", "K", "theta_share_micro", "d_ratio_min")
	for _, t := range tiers {
		fmt.Printf("%-8d %-18d %.6f\n", t.K, t.ThetaShareMicro, t.DRatioMin)
	}
}

func parseInt64CSV(s string) ([]int64, error) {
	var out []int64
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				var v int64
				if _, err := fmt.Sscanf(s[start:i], "%d", &v); err != nil {
					return nil, fmt.Errorf("parsing %q: %w", s[start:i], err)
				}
				out = append(out, v)
			}
			start = i + 1
		}
	}
	return out, nil
}
