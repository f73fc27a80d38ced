package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ahmethakanbesel/tgsearch-api/internal/apperror"
	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
)

const (
	ownerHeader  = "X-Owner-ID"
	maxBodyBytes = 1 << 20
)

// searchBody is the wire shape of a search request. Channels and keywords
// may be sent as arrays or as one comma/newline separated string.
type searchBody struct {
	Channels        stringList `json:"channels"`
	Keywords        stringList `json:"keywords"`
	ExcludeKeywords stringList `json:"excludeKeywords"`
	StartDate       string     `json:"startDate"`
	EndDate         string     `json:"endDate"`
	ContentFilter   string     `json:"contentFilter"`
	VideosOnly      *bool      `json:"videosOnly"`
	VideosOnlyOld   *bool      `json:"videos_only"`
}

type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = search.SplitList(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return errors.New("expected a string or an array of strings")
	}
	*l = arr
	return nil
}

func decodeSearch(r *http.Request) (search.Request, *apperror.AppError) {
	var body searchBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return search.Request{}, apperror.New(apperror.BadRequest, "invalid request body: "+err.Error())
	}

	req := search.Request{
		Channels:        body.Channels,
		Keywords:        body.Keywords,
		ExcludeKeywords: body.ExcludeKeywords,
		ContentFilter:   search.ContentFilter(body.ContentFilter),
	}

	var err error
	if body.StartDate != "" {
		if req.StartDate, err = search.ParseDate(body.StartDate); err != nil {
			return search.Request{}, apperror.New(apperror.BadRequest, "invalid startDate format, expected YYYY-MM-DD")
		}
	}
	if body.EndDate != "" {
		if req.EndDate, err = search.ParseDate(body.EndDate); err != nil {
			return search.Request{}, apperror.New(apperror.BadRequest, "invalid endDate format, expected YYYY-MM-DD")
		}
	}

	if req.ContentFilter == "" {
		videosOnly := body.VideosOnly
		if videosOnly == nil {
			videosOnly = body.VideosOnlyOld
		}
		if videosOnly != nil && !*videosOnly {
			req.ContentFilter = search.ContentAny
		}
	}
	return req, nil
}
