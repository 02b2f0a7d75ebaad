package models

import (
	"strings"
	"unicode/utf8"
)

func WordCount(s string) int { return len(strings.Fields(s)) }

func CharCount(s string) int { return utf8.RuneCountInString(s) }
