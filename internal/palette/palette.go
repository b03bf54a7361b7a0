package palette

// Display colors handed out to participants, in assignment order
var Colors = []string{"#f94144", "#43aa8b", "#577590", "#f9c74f", "#90be6d"}

// Returns the color for the participant at the given roster position
func ColorFor(index int) string {
	if index < 0 {
		index = -index
	}
	return Colors[index%len(Colors)]
}
