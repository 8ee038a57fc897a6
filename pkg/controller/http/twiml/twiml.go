// Package twiml renders the markup documents the telephony provider executes
// to drive a call.
package twiml

import (
	"encoding/xml"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
)

// Response is the root document. Verbs execute in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text with the provider's built-in voice
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Play streams a pre-synthesized audio URL
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Gather listens for caller speech and posts the result to Action. Nested
// verbs play while listening.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Verbs         []any
}

// Redirect hands control to another webhook URL
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// New creates a response with the given verbs
func New(verbs ...any) *Response {
	return &Response{Verbs: verbs}
}

// Add appends verbs to the response
func (r *Response) Add(verbs ...any) *Response {
	r.Verbs = append(r.Verbs, verbs...)
	return r
}

// Add nests verbs inside the gather
func (g *Gather) Add(verbs ...any) *Gather {
	g.Verbs = append(g.Verbs, verbs...)
	return g
}

// Render serializes the response with the XML declaration
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal twiml response")
	}
	return append([]byte(xml.Header), body...), nil
}

// Write renders the response onto an HTTP response with the XML content type.
// Rendering failure degrades to a minimal hangup document: the provider must
// always receive executable markup.
func (r *Response) Write(w http.ResponseWriter) error {
	body, err := r.Render()
	if err != nil {
		body = []byte(xml.Header + "<Response><Hangup/></Response>")
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, werr := w.Write(body); werr != nil {
		return goerr.Wrap(werr, "failed to write twiml response")
	}
	return err
}

// SpeechGather returns a Gather armed for speech input posting to action
func SpeechGather(action string) *Gather {
	return &Gather{
		Input:         "speech",
		Action:        action,
		Method:        http.MethodPost,
		SpeechTimeout: "auto",
	}
}
