package plugin

import (
	"regexp"
	"strconv"

	"github.com/vovakirdan/chatgate/internal/core"
)

const SmileysName = "smileys"

var smileyImage = regexp.MustCompile(`<img[^>]*?src="[^"]*/smile/(\d+)\.gif"[^>]*>`)

// smileys maps the textual form to the image ids the chat renders it with.
var smileys = map[string][]int{
	"8-)":       {7, 141},
	":-)":       {6, 733, 591, 933},
	":-/":       {589, 140},
	":-3":       {1018},
	":-D":       {3, 684},
	":-O":       {8, 681},
	":-S":       {675},
	":o)":       {932},
	";-)":       {4, 534},
	":-(":       {2, 35},
	":-P":       {5, 565},
	":-*":       {9, 586},
	":'(":       {10, 588},
	"Ach jo":    {89, 981, 358},
	"Ahojky!!!": {930},
	"Ano":       {670, 952, 42, 435},
	"Baf!":      {415},
	"BAN!":      {886},
	"Checheche": {471, 83, 994, 716, 561},
	"Facepalm":  {766, 393},
	"Haha":      {240, 242, 405, 931, 551, 324},
	"Ne":        {671, 43},
	"Pivo":      {149, 306},
	"Srdce":     {27, 596},
}

// Smileys replaces smiley images in incoming text with their textual form.
type Smileys struct {
	byID map[int]string
}

func NewSmileys() *Smileys {
	byID := make(map[int]string)
	for text, ids := range smileys {
		for _, id := range ids {
			byID[id] = text
		}
	}
	return &Smileys{byID: byID}
}

func (s *Smileys) Name() string { return SmileysName }

func (s *Smileys) TransformIncoming(ev *core.RoomEvent) {
	ev.Text = s.Replace(ev.Text)
}

// Replace substitutes every smiley image in text. Unknown ids become *N*.
func (s *Smileys) Replace(text string) string {
	return smileyImage.ReplaceAllStringFunc(text, func(tag string) string {
		m := smileyImage.FindStringSubmatch(tag)
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return tag
		}
		if t, ok := s.byID[id]; ok {
			return t
		}
		return "*" + m[1] + "*"
	})
}
