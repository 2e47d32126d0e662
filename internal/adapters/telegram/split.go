package telegram

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit максимальная длина сообщения Telegram в символах.
const MessageLimit = 4096

// SplitMessage режет текст на части не длиннее MessageLimit, по возможности
// по переводам строк.
func SplitMessage(text string) []string {
	return splitLines(strings.TrimSpace(text), MessageLimit)
}

// PackBlocks собирает сообщения из целых блоков: блок не разрывается между
// сообщениями, если сам укладывается в лимит. header ставится перед первым
// блоком первого сообщения.
func PackBlocks(header string, blocks []string) []string {
	return packBlocks(header, blocks, MessageLimit)
}

func packBlocks(header string, blocks []string, limit int) []string {
	var (
		parts   []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			parts = append(parts, chunk)
		}
		current.Reset()
		size = 0
	}
	current.WriteString(header)
	size = utf8.RuneCountInString(header)

	for _, block := range blocks {
		n := utf8.RuneCountInString(block)
		if size+n > limit {
			flush()
		}
		if n > limit {
			parts = append(parts, splitLines(strings.TrimSpace(block), limit)...)
			continue
		}
		current.WriteString(block)
		size += n
	}
	flush()
	return parts
}

func splitLines(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			if chunk := strings.Trim(string(runes[start:]), "\n"); chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}

		cut := end
		for i := end; i > start; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		if chunk := strings.Trim(string(runes[start:cut]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		start = cut
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}
	return parts
}
