package pricing

import "strings"

var (
	onesWords = [...]string{
		"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tensWords = [...]string{
		"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
	}
	scaleWords = [...]string{"", "thousand", "million", "billion", "trillion", "quadrillion", "quintillion"}
)

// AmountToWords spells out a whole amount in English, e.g. 1250 -> "one thousand two hundred fifty".
func AmountToWords(amount int64) string {
	if amount == 0 {
		return "zero"
	}
	if amount < 0 {
		// -amount overflows for MinInt64, so walk the groups on the unsigned value.
		return "minus " + unsignedToWords(uint64(-(amount+1))+1)
	}
	return unsignedToWords(uint64(amount))
}

func unsignedToWords(n uint64) string {
	var groups []string
	for scale := 0; n > 0; scale++ {
		chunk := int(n % 1000)
		n /= 1000
		if chunk == 0 {
			continue
		}
		words := hundredsToWords(chunk)
		if scaleWords[scale] != "" {
			words += " " + scaleWords[scale]
		}
		groups = append(groups, words)
	}
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	return strings.Join(groups, " ")
}

func hundredsToWords(n int) string {
	parts := make([]string, 0, 3)
	if n >= 100 {
		parts = append(parts, onesWords[n/100]+" hundred")
		n %= 100
	}
	if n >= 20 {
		parts = append(parts, tensWords[n/10])
		n %= 10
	}
	if n > 0 {
		parts = append(parts, onesWords[n])
	}
	return strings.Join(parts, " ")
}
