// Package domain models the Brazilian COVID-19 daily time series and the
// table transformations applied to it.
//
// # Data Source
//
// Case counts come from the wcota/covid19br project ("Número de casos
// confirmados de COVID-19 no Brasil"), which publishes two CSV files on GitHub:
//
//	cases-brazil-states.csv       one row per state per day
//	cases-brazil-cities-time.csv  one row per city per day
//
// Both files are sorted by date. The state file also carries a synthetic
// "TOTAL" state holding the national sum, and the city file carries
// placeholder cities such as "CASO SEM LOCALIZAÇÃO DEFINIDA/RJ" for cases
// without a known municipality. Neither is treated specially here.
//
// # Conventions
//
// Counts:
//
//	totalCases, deaths and recovered are cumulative as of the row's date.
//	newCases is the daily delta and is exposed as "infected".
//	Empty cells are treated as zero. The recovered column is frequently
//	empty in early rows and absent from the city file entirely.
//
// Dates:
//
//	ISO calendar dates ("2020-03-10"), held as UTC midnight. The day index of a
//	row is the number of whole days between its date and the earliest date
//	in the table it belongs to, so the first observed day is day 0.
//
// City names:
//
//	City names embed the state, e.g. "Petrópolis/RJ". Slicing matches the name
//	exactly as published.
//
// # Tables
//
// A table is a slice of fixed-schema records in source order. Filtering and
// slicing always return a fresh slice, so row positions are contiguous from 0.
package domain
