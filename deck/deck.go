// deck/deck.go
package deck

import (
	"math/rand"

	"github.com/wfunc/bobboi/models"
)

var suits = []string{"hearts", "diamonds", "clubs", "spades"}

// Ranks in ascending value order: index i maps to value i+2 (2..10, J, Q, K, A high).
var Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// New 创建标准 52 张牌，洗牌前顺序固定
func New() []models.Card {
	cards := make([]models.Card, 0, len(suits)*len(Ranks))
	for _, suit := range suits {
		for i, rank := range Ranks {
			cards = append(cards, models.Card{
				Suit:  suit,
				Rank:  rank,
				Value: i + 2,
			})
		}
	}
	return cards
}

// Shuffle Fisher-Yates 洗牌，返回新切片，不修改入参
func Shuffle(cards []models.Card) []models.Card {
	shuffled := make([]models.Card, len(cards))
	copy(shuffled, cards)

	for i := len(shuffled) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}
