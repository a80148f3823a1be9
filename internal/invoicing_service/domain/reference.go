package domain

import (
	"encoding/json"
	"regexp"
)

// Reference is the structured blob attached to an invoice at creation time
// so the origin conversation can be recovered at webhook time. The JSON
// field names are part of the wire contract with previously issued invoices.
type Reference struct {
	GuildID   string `json:"guildId,omitempty"`
	ChannelID string `json:"channelId"`
	InvokerID string `json:"invokerId,omitempty"`
}

// EncodeReference serializes the origin context into the reference blob.
func EncodeReference(origin OriginContext) string {
	b, _ := json.Marshal(Reference{
		GuildID:   origin.GuildID,
		ChannelID: origin.ChannelID,
		InvokerID: origin.RequesterID,
	})
	return string(b)
}

// legacyChannelToken matches the pre-structured encoding: a fixed ch_ prefix
// followed by a 17-20 digit channel id, embedded anywhere in a reference or
// invoice-number string. Kept only for invoices issued by older revisions.
var legacyChannelToken = regexp.MustCompile(`ch_(\d{17,20})`)

// ChannelFromStructuredReference extracts the destination channel from a
// reference blob that parses as the structured format.
func ChannelFromStructuredReference(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	var ref Reference
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		return "", false
	}
	if ref.ChannelID == "" {
		return "", false
	}
	return ref.ChannelID, true
}

// ChannelFromLegacyToken extracts the destination channel from the legacy
// pattern-matchable token.
func ChannelFromLegacyToken(raw string) (string, bool) {
	m := legacyChannelToken.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}
