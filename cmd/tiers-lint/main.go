package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"typerush/models"
)

func main() {
	path := "./config/rewards.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("%s: read error: %v\n", path, err)
		os.Exit(1)
	}

	var tiers []models.RewardTier
	if err := json.Unmarshal(data, &tiers); err != nil {
		fmt.Printf("%s: parse error: %v\n", path, err)
		os.Exit(1)
	}

	if len(tiers) == 0 {
		fmt.Printf("%s: no tiers defined\n", path)
		os.Exit(1)
	}

	bad := 0
	seen := map[string]bool{}
	for i, tier := range tiers {
		if tier.ID == "" {
			fmt.Printf("%s: tier %d: empty id\n", path, i)
			bad++
			continue
		}
		if seen[tier.ID] {
			fmt.Printf("%s: tier %q: duplicate id\n", path, tier.ID)
			bad++
		}
		seen[tier.ID] = true

		if math.IsNaN(tier.Amount) || math.IsInf(tier.Amount, 0) || tier.Amount <= 0 {
			fmt.Printf("%s: tier %q: amount must be positive, got %v\n", path, tier.ID, tier.Amount)
			bad++
		}
		if tier.MinWPM < 0 {
			fmt.Printf("%s: tier %q: minWpm must not be negative\n", path, tier.ID)
			bad++
		}
		if tier.MinAccuracy < 0 || tier.MinAccuracy > 100 {
			fmt.Printf("%s: tier %q: minAccuracy must be within [0, 100]\n", path, tier.ID)
			bad++
		}
	}

	if bad > 0 {
		os.Exit(1)
	}
	fmt.Printf("%s: OK (%d tiers)\n", path, len(tiers))
}
