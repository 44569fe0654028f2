package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"

	"sms-margin/pkg/platform"
)

// Quote Regression Suite
// Seeds markup rules for a throwaway owner over the live API, fires
// quote requests against them and asserts the priced outcome. Run it
// against a server started with `smsmargin serve`.

var baseURL = platform.GetEnv("SMSMARGIN_API_URL", "http://localhost:8080/api/v1")

type quoteResponse struct {
	AppliedRuleID  *string `json:"applied_rule_id"`
	UnitSellPrice  string  `json:"unit_sell_price"`
	TotalSellPrice string  `json:"total_sell_price"`
	Profit         string  `json:"profit"`
	Clamped        bool    `json:"clamped"`
}

type ruleResponse struct {
	ID string `json:"id"`
}

func main() {
	fmt.Println("Running Quote Regression Tests...")

	// A fresh owner id isolates the suite from any existing rules.
	owner := uuid.New().String()

	ruleIDs, err := seedRules(owner)
	if err != nil {
		fmt.Printf("SETUP FAILED: %v\n", err)
		os.Exit(1)
	}
	if !platform.GetEnvBool("SMSMARGIN_REGRESSION_KEEP_RULES", false) {
		defer cleanupRules(owner, ruleIDs)
	}

	tests := []struct {
		Name          string
		Body          map[string]interface{}
		ExpectApplied bool
		ExpectSell    string
		ExpectProfit  string
	}{
		{
			Name: "Ghana 20% markup applies",
			Body: map[string]interface{}{
				"volume":       1000,
				"country_code": "GH",
				"base_cost":    "0.01",
				"test":         true,
			},
			ExpectApplied: true,
			ExpectSell:    "12.00",
			ExpectProfit:  "2.00",
		},
		{
			Name: "Unscoped country falls back to catch-all",
			Body: map[string]interface{}{
				"volume":       1000,
				"country_code": "KE",
				"base_cost":    "0.01",
				"test":         true,
			},
			ExpectApplied: true,
			ExpectSell:    "11.00",
			ExpectProfit:  "1.00",
		},
		{
			Name: "Lowercase country still matches",
			Body: map[string]interface{}{
				"volume":       1000,
				"country_code": "gh",
				"base_cost":    "0.01",
				"test":         true,
			},
			ExpectApplied: true,
			ExpectSell:    "12.00",
			ExpectProfit:  "2.00",
		},
	}

	pass := 0
	fail := 0

	for _, t := range tests {
		fmt.Printf("TEST: %s ... ", t.Name)

		res, err := postQuote(owner, t.Body)
		if err != nil {
			fmt.Printf("ERROR calling service: %v\n", err)
			fail++
			continue
		}

		applied := res.AppliedRuleID != nil
		switch {
		case applied != t.ExpectApplied:
			fmt.Printf("FAIL (applied=%v, expected %v)\n", applied, t.ExpectApplied)
			fail++
		case res.TotalSellPrice != t.ExpectSell:
			fmt.Printf("FAIL (sell=%s, expected %s)\n", res.TotalSellPrice, t.ExpectSell)
			fail++
		case res.Profit != t.ExpectProfit:
			fmt.Printf("FAIL (profit=%s, expected %s)\n", res.Profit, t.ExpectProfit)
			fail++
		default:
			fmt.Println("PASS")
			pass++
		}
	}

	fmt.Printf("\nResult: %d PASS, %d FAIL\n", pass, fail)
	if fail > 0 {
		os.Exit(1)
	}
}

func seedRules(owner string) ([]string, error) {
	rules := []map[string]interface{}{
		{
			"name":         "regression catch-all 10%",
			"markup_type":  "PERCENTAGE",
			"markup_value": "10",
			"priority":     100,
			"is_active":    true,
		},
		{
			"name":         "regression Ghana 20%",
			"markup_type":  "PERCENTAGE",
			"markup_value": "20",
			"country_code": "GH",
			"priority":     100,
			"is_active":    true,
		},
	}

	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		body, _ := json.Marshal(rule)
		req, err := http.NewRequest(http.MethodPost, baseURL+"/rules", bytes.NewBuffer(body))
		if err != nil {
			return ids, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Owner-ID", owner)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return ids, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return ids, fmt.Errorf("rule create returned %d", resp.StatusCode)
		}

		var created ruleResponse
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return ids, err
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func cleanupRules(owner string, ids []string) {
	for _, id := range ids {
		req, err := http.NewRequest(http.MethodDelete, baseURL+"/rules/"+id, nil)
		if err != nil {
			continue
		}
		req.Header.Set("X-Owner-ID", owner)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}
}

func postQuote(owner string, body map[string]interface{}) (*quoteResponse, error) {
	payload, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, baseURL+"/quote", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Owner-ID", owner)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote returned %d", resp.StatusCode)
	}

	var out quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
