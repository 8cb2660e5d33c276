package workout

import "strings"

// bodyweightMovements are exercise-name fragments recognized as
// bodyweight work, where a completed set needs no weight. Matching is
// case-insensitive substring.
var bodyweightMovements = []string{
	"push-up",
	"push up",
	"pushup",
	"pull-up",
	"pull up",
	"pullup",
	"chin-up",
	"chin up",
	"dip",
	"plank",
	"sit-up",
	"sit up",
	"crunch",
	"lunge",
	"burpee",
	"mountain climber",
	"bodyweight",
	"air squat",
	"pistol squat",
	"leg raise",
	"muscle-up",
	"handstand",
}

// IsBodyweightMovement reports whether the exercise name looks like a
// bodyweight movement.
func IsBodyweightMovement(name string) bool {
	n := strings.ToLower(name)
	for _, frag := range bodyweightMovements {
		if strings.Contains(n, frag) {
			return true
		}
	}
	return false
}
