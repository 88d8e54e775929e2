package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const maxPhotoWidth = 1600

// PhotoStream is an upstream photo body handed to the proxy handler.
// The caller owns Body and must close it.
type PhotoStream struct {
	Body          io.Reader
	ContentType   string
	ContentLength int64
	close         func() error
}

// Close releases the upstream response body.
func (p *PhotoStream) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// Photo fetches one photo's media bytes. The API key travels in a
// request header only; it never appears in any URL a client could see.
func (a *Adapter) Photo(ctx context.Context, placeID, photoID string, maxWidthPx int) (*PhotoStream, error) {
	if maxWidthPx <= 0 || maxWidthPx > maxPhotoWidth {
		maxWidthPx = maxPhotoWidth
	}

	path := fmt.Sprintf("/v1/places/%s/photos/%s/media",
		url.PathEscape(placeID), url.PathEscape(photoID))
	query := url.Values{"maxWidthPx": {strconv.Itoa(maxWidthPx)}}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		cancel()
		return nil, &Error{Kind: KindAPIError, Err: err}
	}
	req.Header.Set("X-Goog-Api-Key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindAPIError, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		kind := KindAPIError
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = KindQuota
		}
		return nil, &Error{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("photo media returned %s", resp.Status),
		}
	}

	return &PhotoStream{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		close: func() error {
			defer cancel()
			return resp.Body.Close()
		},
	}, nil
}
