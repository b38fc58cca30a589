package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// BulkInsert splits records into Collections-API batches of 200 and inserts
// them into the given object. Partial results collected so far are returned
// alongside the error when a batch fails.
func BulkInsert(ctx context.Context, c Client, object string, records []map[string]any) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(records); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(records) {
			end = len(records)
		}

		results, err := c.InsertCollection(ctx, object, records[start:end])
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk insert %s batch %d-%d", object, start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// BulkUpdate splits updates into Collections-API batches of 200 and applies
// them to the given object.
func BulkUpdate(ctx context.Context, c Client, object string, records []CollectionRecord) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(records); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(records) {
			end = len(records)
		}

		results, err := c.UpdateCollection(ctx, object, records[start:end])
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk update %s batch %d-%d", object, start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}
