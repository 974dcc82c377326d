package game

import "strings"

// winTriples lists every winning line, checked in fixed order:
// rows, columns, diagonals.
var winTriples = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// winnerSymbol returns "X" or "O" if a triple is complete, else "".
func winnerSymbol(board string) string {
	for _, t := range winTriples {
		if board[t[0]] != ' ' && board[t[0]] == board[t[1]] && board[t[1]] == board[t[2]] {
			return string(board[t[0]])
		}
	}
	return ""
}

func boardFull(board string) bool {
	return !strings.Contains(board, " ")
}
