package ratesource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/shopspring/decimal"
)

// The Price List API is only served from these regions.
const priceListRegion = "us-east-1"

const snsServiceCode = "AmazonSNS"

// AWSPriceList resolves wholesale SMS delivery prices from the AWS
// Price List API (SNS SMS delivery offers, priced per message per
// destination country). Used by the rates-update command to refresh
// the Redis cache; not placed on the hot quote path.
type AWSPriceList struct {
	client *pricing.Client
}

// NewAWSPriceList builds a Price List client from the ambient AWS
// configuration.
func NewAWSPriceList(ctx context.Context) (*AWSPriceList, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(priceListRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &AWSPriceList{client: pricing.NewFromConfig(cfg)}, nil
}

// UnitCost fetches the per-message delivery price for the country.
func (a *AWSPriceList) UnitCost(ctx context.Context, countryCode string) (decimal.Decimal, error) {
	cc := strings.ToUpper(countryCode)
	out, err := a.client.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String(snsServiceCode),
		MaxResults:  aws.Int32(10),
		Filters: []types.Filter{
			{
				Type:  types.FilterTypeTermMatch,
				Field: aws.String("countryCode"),
				Value: aws.String(cc),
			},
			{
				Type:  types.FilterTypeTermMatch,
				Field: aws.String("messageType"),
				Value: aws.String("SMS"),
			},
		},
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query price list for %s: %w", cc, err)
	}
	if len(out.PriceList) == 0 {
		return decimal.Zero, fmt.Errorf("no price list entry for country %s", cc)
	}

	rate, err := parsePricePerUnit(out.PriceList[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price list entry for %s: %w", cc, err)
	}
	return rate, nil
}

// Refresh pulls rates for the given countries into the cache. Failed
// countries are reported but do not abort the remaining refreshes.
func (a *AWSPriceList) Refresh(ctx context.Context, cache *RedisCache, countries []string) (int, []error) {
	var errs []error
	updated := 0
	for _, cc := range countries {
		rate, err := a.UnitCost(ctx, cc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := cache.Put(ctx, cc, rate); err != nil {
			errs = append(errs, err)
			continue
		}
		updated++
	}
	return updated, errs
}

// parsePricePerUnit walks a Price List offer document down to its
// first on-demand USD price dimension.
func parsePricePerUnit(doc string) (decimal.Decimal, error) {
	var offer struct {
		Terms struct {
			OnDemand map[string]struct {
				PriceDimensions map[string]struct {
					PricePerUnit map[string]string `json:"pricePerUnit"`
				} `json:"priceDimensions"`
			} `json:"OnDemand"`
		} `json:"terms"`
	}
	if err := json.Unmarshal([]byte(doc), &offer); err != nil {
		return decimal.Zero, err
	}
	for _, term := range offer.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			if usd, ok := dim.PricePerUnit["USD"]; ok {
				return decimal.NewFromString(usd)
			}
		}
	}
	return decimal.Zero, fmt.Errorf("offer document carries no USD price dimension")
}
