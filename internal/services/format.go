package services

import "fmt"

func formatCents(c int64) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}
