package feed

import (
	"context"
	"fmt"

	"ValueFlow/internal/domain/models"
	xhttp "ValueFlow/pkg/http"
)

// Snapshot fetches the latest published batch per subscribed source over the
// REST API. It warms the observation buffer before the stream delivers fresh
// data, so the first window after a restart is not empty.
func (c *Client) Snapshot(ctx context.Context) ([]*models.ObservationBatch, error) {
	if c.restURL == "" {
		return nil, nil
	}

	out := make([]*models.ObservationBatch, 0, len(c.sources))
	for _, source := range c.sources {
		var m wireBatch
		err := c.rest.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    c.restURL + "/observations/latest",
			QueryParams: map[string][]string{
				"source": {source},
				"token":  {c.apiKey},
			},
		}, &m)
		if err != nil {
			return out, fmt.Errorf("snapshot %s: %w", source, err)
		}
		if len(m.Records) == 0 {
			continue
		}
		out = append(out, decodeBatch(&m))
	}
	return out, nil
}
