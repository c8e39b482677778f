package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/itchan-dev/itchat/shared/errors"
)

const (
	maxChannelNameLen = 100
	maxMessageLen     = 10_000
)

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == ' '
}

type ChannelNameValidator struct{}

func (e *ChannelNameValidator) Name(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.BadRequest("Name is too short")
	}
	if utf8.RuneCountInString(name) > maxChannelNameLen {
		return errors.BadRequest("Name is too long")
	}
	if strings.IndexFunc(name, func(r rune) bool { return !isNameRune(r) }) >= 0 {
		return errors.BadRequest("Name should contain only letters, digits, spaces, '-' and '_'")
	}
	return nil
}

type MessageValidator struct{}

func (e *MessageValidator) Text(text string) error {
	if utf8.RuneCountInString(text) > maxMessageLen {
		return errors.BadRequest("Text is too long")
	}
	if strings.TrimSpace(text) == "" {
		return errors.BadRequest("Text is too short")
	}
	return nil
}
