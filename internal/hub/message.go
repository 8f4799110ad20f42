package hub

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Message is one line of the hub protocol: TO:VERB:NOUN[:ARGS...]:FROM.
type Message struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (m *Message) String() string {
	parts := make([]string, 0, 4+len(m.Args))
	parts = append(parts, m.To, m.Verb, m.Noun)
	parts = append(parts, m.Args...)
	parts = append(parts, m.From)
	return strings.Join(parts, ":")
}

var (
	tokenRe   = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	hexIDRe   = regexp.MustCompile(`^[0-9A-F]{2}$`)
	invalidRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

func isToken(s string) bool { return tokenRe.MatchString(s) }

func isHexID(s string) bool { return hexIDRe.MatchString(strings.ToUpper(s)) }

// Token makes s safe to use as a message field.
func Token(s string) string {
	s = strings.Trim(invalidRe.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "none"
	}
	return s
}

// Parse validates a single-line message. Verb and noun are upper-cased.
func Parse(line string) (*Message, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, errors.New("empty message")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, errors.New("invalid whitespace present")
	}
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("too few fields: got %d, want >= 4", len(parts))
	}

	to, verb, noun, from := parts[0], parts[1], parts[2], parts[len(parts)-1]
	args := append([]string(nil), parts[3:len(parts)-1]...)

	if !isToken(to) && !isHexID(to) && to != "ALL" {
		return nil, fmt.Errorf("invalid TO token: %q", to)
	}
	if !isToken(from) && !isHexID(from) {
		return nil, fmt.Errorf("invalid FROM token: %q", from)
	}
	if !isToken(noun) || !isToken(verb) {
		return nil, fmt.Errorf("invalid NOUN/VERB: %q %q", noun, verb)
	}
	for i, a := range args {
		if !isToken(a) {
			return nil, fmt.Errorf("invalid ARG[%d]: %q", i, a)
		}
	}

	return &Message{
		To:   to,
		Verb: strings.ToUpper(verb),
		Noun: strings.ToUpper(noun),
		Args: args,
		From: from,
	}, nil
}
