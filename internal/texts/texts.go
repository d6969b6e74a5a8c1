package texts

import "math/rand"

// Pool holds the candidate passages a race can be typed against. One is
// drawn at race creation and never changes for the lifetime of the race.
var Pool = []string{
	"The quick brown fox jumps over the lazy dog while the sun sets behind the distant mountains, painting the sky in shades of orange and purple that no photograph could ever truly capture.",
	"Programming is the art of telling another human being what one wants the computer to do, and the best programs are written so that computing machines can perform them quickly and human beings can understand them clearly.",
	"In the middle of the journey of our life I found myself within a dark woods where the straight way was lost, and the memory of that forest renews my fear so bitter that death is hardly more severe.",
	"Typing speed is measured in words per minute, where a word is standardized to five characters including spaces, so a typist who enters three hundred characters in one minute is credited with sixty words.",
	"The old lighthouse keeper climbed the spiral staircase every evening at dusk, carrying his lantern through the salt-stained corridors to light the beacon that guided ships safely past the rocky shore.",
	"Rivers carve canyons over millions of years not through sudden force but through patient persistence, a reminder that small consistent efforts often accomplish what no single dramatic gesture ever could.",
	"She packed her bags the night before the expedition, checking each item twice against the list: rope, compass, matches, dried fruit, a folding knife, and the worn leather journal her grandfather had carried.",
	"Every great developer you know got there by solving problems they were unqualified to solve until they actually did it, and the difference between the master and the beginner is that the master has failed more times.",
}

// Random returns one passage from the pool using the supplied source.
func Random(rng *rand.Rand) string {
	return Pool[rng.Intn(len(Pool))]
}
