package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ScholarSnippets/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func summaryTable(stats []domain.EntryStats) string {
	headers := []string{"Member", "ORCID", "Fetched", "Included", "Excluded", "Duplicates", "Malformed", "Status"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		status := "ok"
		if s.Err != nil {
			status = "failed"
		}
		rows = append(rows, []string{
			s.Owner.DisplayName,
			s.Owner.Identifier,
			strconv.Itoa(s.Fetched),
			strconv.Itoa(s.Included),
			strconv.Itoa(s.Excluded),
			strconv.Itoa(s.Duplicates),
			strconv.Itoa(s.Malformed),
			status,
		})
	}
	return renderTable(headers, rows, aligns)
}

func rosterTable(members []domain.RosterEntry) string {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{strconv.Itoa(m.Position + 1), m.DisplayName, m.Identifier, m.FilterProfile})
	}
	return renderTable([]string{"#", "Member", "ORCID", "Profile"}, rows, []columnAlignment{alignRight})
}
