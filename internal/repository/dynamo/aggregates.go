// Package dynamo implements aggregate.Repository on a single DynamoDB table.
//
// Items use the PK/SK layout:
//
//	PK=GEN#<n>   SK=META            report generation marker
//	PK=GEN#<n>   SK=DOMAIN#<name>   counters for one domain
//	PK=DOMAINS   SK=DOMAIN#<name>   known sending domain
//
// Counters are bumped with UpdateItem ADD, which creates the item and the
// attribute on first use and is atomic per item.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/service/aggregate"
)

const (
	metaSK       = "META"
	domainPrefix = "DOMAIN#"
	domainsPK    = "DOMAINS"
	timeLayout   = time.RFC3339Nano
)

// API is the subset of *dynamodb.Client used here.
type API interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// aggregateItem is the stored shape of a DOMAIN# counter item.
type aggregateItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	Domain         string `dynamodbav:"Domain"`
	DeliveredCount int64  `dynamodbav:"DeliveredCount"`
	BlockedCount   int64  `dynamodbav:"BlockedCount"`
	BlockedGmail   int64  `dynamodbav:"Blocked_Gmail"`
	BlockedOutlook int64  `dynamodbav:"Blocked_Outlook"`
	BlockedYahoo   int64  `dynamodbav:"Blocked_Yahoo"`
	BlockedHotmail int64  `dynamodbav:"Blocked_Hotmail"`
	BlockedICloud  int64  `dynamodbav:"Blocked_iCloud"`
	BlockedOther   int64  `dynamodbav:"Blocked_otherDomain"`
	LastUpdated    string `dynamodbav:"LastUpdated"`
}

type knownDomainItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Domain    string `dynamodbav:"Domain"`
	FirstSeen string `dynamodbav:"FirstSeen"`
}

// AggregateRepo stores aggregates in DynamoDB.
type AggregateRepo struct {
	client API
	table  string
}

// NewAggregateRepo creates a DynamoDB-backed aggregate repository.
func NewAggregateRepo(client API, table string) *AggregateRepo {
	return &AggregateRepo{client: client, table: table}
}

var _ aggregate.Repository = (*AggregateRepo)(nil)

func generationPK(n int) string { return "GEN#" + strconv.Itoa(n) }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func hostAttribute(h domain.HostCategory) string {
	for _, known := range domain.AllHostCategories() {
		if h == known {
			return "Blocked_" + string(h)
		}
	}
	return "Blocked_" + string(domain.HostOther)
}

func (r *AggregateRepo) IncrementDelivered(ctx context.Context, generation int, domainName string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.table),
		Key:              key(generationPK(generation), domainPrefix+domainName),
		UpdateExpression: aws.String("ADD DeliveredCount :one SET #d = :domain, LastUpdated = :at"),
		ExpressionAttributeNames: map[string]string{
			"#d": "Domain",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":    &types.AttributeValueMemberN{Value: "1"},
			":domain": &types.AttributeValueMemberS{Value: domainName},
			":at":     &types.AttributeValueMemberS{Value: at.UTC().Format(timeLayout)},
		},
	})
	if err != nil {
		return fmt.Errorf("increment delivered: %w", err)
	}
	return nil
}

func (r *AggregateRepo) IncrementBlocked(ctx context.Context, generation int, domainName string, host domain.HostCategory, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.table),
		Key:              key(generationPK(generation), domainPrefix+domainName),
		UpdateExpression: aws.String("ADD BlockedCount :one, #h :one SET #d = :domain, LastUpdated = :at"),
		ExpressionAttributeNames: map[string]string{
			"#h": hostAttribute(host),
			"#d": "Domain",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":    &types.AttributeValueMemberN{Value: "1"},
			":domain": &types.AttributeValueMemberS{Value: domainName},
			":at":     &types.AttributeValueMemberS{Value: at.UTC().Format(timeLayout)},
		},
	})
	if err != nil {
		return fmt.Errorf("increment blocked: %w", err)
	}
	return nil
}

func (r *AggregateRepo) RegisterGeneration(ctx context.Context, generation int) error {
	item := key(generationPK(generation), metaSK)
	item["CreatedAt"] = &types.AttributeValueMemberS{Value: time.Now().UTC().Format(timeLayout)}
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("register generation: %w", err)
	}
	return nil
}

func (r *AggregateRepo) GenerationExists(ctx context.Context, generation int) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       key(generationPK(generation), metaSK),
	})
	if err != nil {
		return false, fmt.Errorf("check generation: %w", err)
	}
	return len(out.Item) > 0, nil
}

func (r *AggregateRepo) ListByGeneration(ctx context.Context, generation int) ([]domain.DomainAggregate, error) {
	var items []aggregateItem
	if err := r.queryAll(ctx, generationPK(generation), &items); err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}

	out := make([]domain.DomainAggregate, 0, len(items))
	for _, it := range items {
		updated, _ := time.Parse(timeLayout, it.LastUpdated)
		out = append(out, domain.DomainAggregate{
			Generation:     generation,
			Domain:         it.Domain,
			DeliveredCount: it.DeliveredCount,
			BlockedCount:   it.BlockedCount,
			BlockedByHost: map[domain.HostCategory]int64{
				domain.HostGmail:   it.BlockedGmail,
				domain.HostOutlook: it.BlockedOutlook,
				domain.HostYahoo:   it.BlockedYahoo,
				domain.HostHotmail: it.BlockedHotmail,
				domain.HostICloud:  it.BlockedICloud,
				domain.HostOther:   it.BlockedOther,
			},
			LastUpdated: updated,
		})
	}
	return out, nil
}

func (r *AggregateRepo) DeleteDomain(ctx context.Context, generation int, domainName string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 key(generationPK(generation), domainPrefix+domainName),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if isConditionFailed(err) {
		return aggregate.ErrDomainNotFound
	}
	if err != nil {
		return fmt.Errorf("delete aggregate: %w", err)
	}
	return nil
}

func (r *AggregateRepo) TouchDomain(ctx context.Context, domainName string, at time.Time) error {
	item, err := attributevalue.MarshalMap(knownDomainItem{
		PK:        domainsPK,
		SK:        domainPrefix + domainName,
		Domain:    domainName,
		FirstSeen: at.UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("marshal domain: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("touch domain: %w", err)
	}
	return nil
}

func (r *AggregateRepo) ListDomains(ctx context.Context) ([]domain.KnownDomain, error) {
	var items []knownDomainItem
	if err := r.queryAll(ctx, domainsPK, &items); err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	out := make([]domain.KnownDomain, 0, len(items))
	for _, it := range items {
		seen, _ := time.Parse(timeLayout, it.FirstSeen)
		out = append(out, domain.KnownDomain{Domain: it.Domain, FirstSeen: seen})
	}
	return out, nil
}

// queryAll reads every DOMAIN# item under pk, following pagination.
func (r *AggregateRepo) queryAll(ctx context.Context, pk string, dst interface{}) error {
	var all []map[string]types.AttributeValue
	var start map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.table),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: pk},
				":prefix": &types.AttributeValueMemberS{Value: domainPrefix},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return err
		}
		all = append(all, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	return attributevalue.UnmarshalListOfMaps(all, dst)
}

func isConditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf) || strings.Contains(err.Error(), "ConditionalCheckFailed")
}
