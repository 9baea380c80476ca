package soap

import (
	"fmt"
	"strings"
)

const (
	// EnvelopeNamespace is the SOAP envelope namespace used by WeMo firmware.
	EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"

	// EncodingStyle is the SOAP encoding style attribute value.
	EncodingStyle = "http://schemas.xmlsoap.org/soap/encoding/"
)

// BuildEnvelope wraps an action name and an optional inner XML fragment in a
// request envelope. serviceType is the per-call namespace carrying the target
// service URN (e.g. "urn:Belkin:service:basicevent:1"). inner is embedded
// verbatim, so callers must escape any user-provided text with EscapeXML
// before including it.
func BuildEnvelope(action, serviceType, inner string) string {
	return fmt.Sprintf(
		`<?xml version="1.0" encoding="utf-8"?>`+
			`<s:Envelope xmlns:s="%s" s:encodingStyle="%s">`+
			`<s:Body>`+
			`<u:%s xmlns:u="%s">%s</u:%s>`+
			`</s:Body>`+
			`</s:Envelope>`,
		EnvelopeNamespace, EncodingStyle, action, serviceType, inner, action)
}

// ActionHeader returns the SOAPACTION header value for an action, including
// the surrounding quotes the firmware expects.
func ActionHeader(serviceType, action string) string {
	return fmt.Sprintf("%q", serviceType+"#"+action)
}

// xmlEscaper replaces the five XML metacharacters.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML metacharacters in s so it can be embedded
// in an envelope body.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
