package model

import "strings"

// ZodiacSign is one of the twelve fixed signs. The Russian name doubles as the
// callback token sent back by the sign menu.
type ZodiacSign string

const (
	Aries       ZodiacSign = "Овен"
	Taurus      ZodiacSign = "Телец"
	Gemini      ZodiacSign = "Близнецы"
	Cancer      ZodiacSign = "Рак"
	Leo         ZodiacSign = "Лев"
	Virgo       ZodiacSign = "Дева"
	Libra       ZodiacSign = "Весы"
	Scorpio     ZodiacSign = "Скорпион"
	Sagittarius ZodiacSign = "Стрелец"
	Capricorn   ZodiacSign = "Козерог"
	Aquarius    ZodiacSign = "Водолей"
	Pisces      ZodiacSign = "Рыбы"
)

var zodiacSigns = []ZodiacSign{
	Aries, Taurus, Gemini, Cancer,
	Leo, Virgo, Libra, Scorpio,
	Sagittarius, Capricorn, Aquarius, Pisces,
}

// AllSigns returns the signs in menu order. The slice is a copy.
func AllSigns() []ZodiacSign {
	out := make([]ZodiacSign, len(zodiacSigns))
	copy(out, zodiacSigns)
	return out
}

// ParseSign matches a callback token against the fixed set.
func ParseSign(token string) (ZodiacSign, bool) {
	token = strings.TrimSpace(token)
	for _, s := range zodiacSigns {
		if string(s) == token {
			return s, true
		}
	}
	return "", false
}

func (s ZodiacSign) Valid() bool {
	_, ok := ParseSign(string(s))
	return ok
}

func (s ZodiacSign) String() string { return string(s) }
