package samgov

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/govcon-matcher/internal/govcon"
)

const dateLayout = "01/02/2006"

// DefaultProcurementTypes limits searches to pre-award notices: sources sought,
// presolicitation, solicitation and combined synopsis/solicitation.
var DefaultProcurementTypes = []string{"r", "p", "o", "k"}

// SearchParams filters the opportunity search. samparam names the query parameter;
// slices are sent comma separated.
type SearchParams struct {
	PostedFrom       time.Time `samparam:"postedFrom"`
	PostedTo         time.Time `samparam:"postedTo"`
	ProcurementTypes []string  `samparam:"ptype"`
	SetAside         string    `samparam:"typeOfSetAside"`
	NAICS            string    `samparam:"ncode"`
	State            string    `samparam:"state"`
	Status           string    `samparam:"status"`
	Keyword          string    `samparam:"q"`
}

// Notice is an opportunity as SAM.gov returns it.
type Notice struct {
	NoticeID            string   `json:"noticeId"`
	Title               string   `json:"title"`
	SolicitationNumber  string   `json:"solicitationNumber"`
	Department          string   `json:"fullParentPathName"`
	PostedDate          string   `json:"postedDate"`
	Type                string   `json:"type"`
	SetAside            string   `json:"typeOfSetAside"`
	SetAsideDescription string   `json:"typeOfSetAsideDescription"`
	NAICSCode           string   `json:"naicsCode"`
	NAICSCodes          []string `json:"naicsCodes"`
	ClassificationCode  string   `json:"classificationCode"`
	Active              string   `json:"active"`
	UILink              string   `json:"uiLink"`
	Award               *Award   `json:"award"`
}

type Award struct {
	Amount float64 `json:"amount"`
}

// Search returns the notices matching params. Zero dates default to the last 30 days
// and an empty type list to DefaultProcurementTypes.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Notice, error) {
	now := time.Now()
	if params.PostedTo.IsZero() {
		params.PostedTo = now
	}
	if params.PostedFrom.IsZero() {
		params.PostedFrom = params.PostedTo.AddDate(0, 0, -30)
	}
	if len(params.ProcurementTypes) == 0 {
		params.ProcurementTypes = DefaultProcurementTypes
	}

	items, err := c.getItems(ctx, buildParams(&params))
	if err != nil {
		return nil, err
	}

	return decodeNotices(items)
}

func decodeNotices(items []item) ([]Notice, error) {
	var notices []Notice
	cfg := &mapstructure.DecoderConfig{
		Result:           &notices,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode notices: %w", err)
	}
	return notices, nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("samparam")
		if key == "" {
			continue
		}

		switch v := value.FieldByIndex(field.Index).Interface().(type) {
		case time.Time:
			if !v.IsZero() {
				q.Set(key, v.Format(dateLayout))
			}
		case []string:
			if len(v) > 0 {
				q.Set(key, strings.Join(v, ","))
			}
		case string:
			if v = strings.TrimSpace(v); v != "" {
				q.Set(key, v)
			}
		}
	}

	return q
}

// Opportunity converts the notice into a record. The primary code comes first in
// the secondary list of SAM.gov, so it is removed from there.
func (n Notice) Opportunity() govcon.Opportunity {
	primary := strings.TrimSpace(n.NAICSCode)
	var secondary []string
	for _, code := range govcon.DistinctCodes(n.NAICSCodes) {
		if primary == "" {
			primary = code
			continue
		}
		if code != primary {
			secondary = append(secondary, code)
		}
	}

	opp := govcon.Opportunity{
		NoticeID:           strings.TrimSpace(n.NoticeID),
		SolicitationNumber: strings.TrimSpace(n.SolicitationNumber),
		Title:              strings.TrimSpace(n.Title),
		Agency:             strings.TrimSpace(n.Department),
		NAICSCode:          primary,
		SecondaryNAICS:     secondary,
		SetAsideCode:       strings.TrimSpace(n.SetAside),
	}
	if n.Award != nil {
		opp.EstimatedValue = n.Award.Amount
	}
	return opp
}

// SummaryText is the text embedded for the notice with the summary profile.
func (n Notice) SummaryText() string {
	parts := []string{strings.TrimSpace(n.Title)}
	if d := strings.TrimSpace(n.Department); d != "" {
		parts = append(parts, "Agency: "+strings.ReplaceAll(d, ".", " / "))
	}
	if t := strings.TrimSpace(n.Type); t != "" {
		parts = append(parts, "Notice type: "+t)
	}
	if s := strings.TrimSpace(n.SetAsideDescription); s != "" {
		parts = append(parts, "Set-aside: "+s)
	}
	if n.NAICSCode != "" {
		parts = append(parts, "NAICS: "+n.NAICSCode)
	}
	return govcon.NormalizeText(strings.Join(parts, "\n"))
}
