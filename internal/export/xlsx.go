// Package export renders standings for download.
package export

import (
	"fmt"
	"io"

	"github.com/jjudge-oj/contestd/types"
	"github.com/xuri/excelize/v2"
)

const sheet = "Sheet1"

// StandingsXLSX writes the standings of contest as a workbook with one row
// per contestant and one column per contest problem. users supplies display
// names; missing users are shown by id only.
func StandingsXLSX(w io.Writer, contest types.Contest, rows []types.Standing, users map[int]types.User) error {
	f := excelize.NewFile()
	defer f.Close()

	icpc := contest.Type == types.ContestTypeICPC
	headers := []any{"Rank", "User ID", "Username", "Name"}
	if icpc {
		headers = append(headers, "Solved", "Penalty")
	} else {
		headers = append(headers, "Score")
	}
	for i, pid := range contest.Problems {
		headers = append(headers, fmt.Sprintf("%s (#%d)", problemLabel(i), pid))
	}
	if err := setRow(f, 1, headers); err != nil {
		return err
	}

	for i, row := range rows {
		user := users[row.UserID]
		values := []any{row.Rank, row.UserID, user.Username, user.Name}
		if icpc {
			values = append(values, row.Solved, row.Penalty/60)
		} else {
			values = append(values, row.Score)
		}
		for _, pid := range contest.Problems {
			cell, ok := row.Problems[pid]
			if !ok {
				values = append(values, "")
				continue
			}
			values = append(values, formatCell(icpc, cell))
		}
		if err := setRow(f, i+2, values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "C", "D", 20); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// formatCell renders ICPC cells as "+n" or "-n" with n the counted
// attempts, and scored cells as the score. Submissions hidden by the
// freeze are appended as "(+k?)".
func formatCell(icpc bool, cell types.RankCell) string {
	var s string
	switch {
	case icpc && cell.Accepted:
		s = fmt.Sprintf("+%d", cell.Attempts)
	case icpc && cell.Attempts > 0:
		s = fmt.Sprintf("-%d", cell.Attempts)
	case icpc:
	default:
		s = fmt.Sprintf("%g", cell.Score)
	}
	if cell.Pending > 0 {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("(+%d?)", cell.Pending)
	}
	return s
}

// problemLabel returns A, B, ..., Z, AA, AB, ...
func problemLabel(i int) string {
	name, err := excelize.ColumnNumberToName(i + 1)
	if err != nil {
		return fmt.Sprint(i + 1)
	}
	return name
}
