package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthIndex(t *testing.T) {
	assert.Equal(t, 0, MonthIndex("JANVIER"))
	assert.Equal(t, 7, MonthIndex("AOÛT"))
	assert.Equal(t, 11, MonthIndex("DÉCEMBRE"))
	assert.Equal(t, -1, MonthIndex("janvier"))
	assert.Equal(t, -1, MonthIndex("AOUT"))
}

func TestMonthForDate(t *testing.T) {
	month, year, err := MonthForDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "FÉVRIER", month)
	assert.Equal(t, "2024", year)

	_, _, err = MonthForDate("29/02/2024")
	assert.Error(t, err)
}

func TestSeasonOf(t *testing.T) {
	assert.Equal(t, "1ER TRIMESTRE", SeasonOf(2).Name)
	assert.Equal(t, "2ÈME TRIMESTRE", SeasonOf(3).Name)
	assert.Equal(t, "4ÈME TRIMESTRE", SeasonOf(11).Name)
	assert.Equal(t, "28/29", LastDayLabel("FÉVRIER"))
	assert.Equal(t, "30", LastDayLabel("SEPTEMBRE"))
}

func TestQuantity_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{`12`, 12},
		{`"7"`, 7},
		{`" 30 "`, 30},
		{`12.9`, 12},
		{`"4 boîtes"`, 4},
		{`null`, 0},
		{`"abc"`, 0},
		{`""`, 0},
		{`true`, 0},
		{`-5`, -5},
		{`2147483647`, 2147483647},
		{`1e30`, 0},
		{`"-99999999999999999999"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var q Quantity
			require.NoError(t, json.Unmarshal([]byte(tt.in), &q))
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestEntry_LenientDecode(t *testing.T) {
	var e InventoryEntry
	err := json.Unmarshal([]byte(`{"id":"e1","year":"2024","month":"MARS","drugName":"X","quantity":"50","date":"2024-03-10"}`), &e)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Quantity.Int())
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	march10 := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC).UnixMilli()
	tests := []struct {
		in   string
		want Timestamp
	}{
		{`1710061200000`, Timestamp(march10)},
		{`"1710061200000"`, Timestamp(march10)},
		{`1710061200000.7`, Timestamp(march10)},
		{`"2024-03-10T09:00:00Z"`, Timestamp(march10)},
		{`"2024-03-10T10:00:00+01:00"`, Timestamp(march10)},
		{`"2024-03-10"`, Timestamp(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC).UnixMilli())},
		{`null`, 0},
		{`"yesterday"`, 0},
		{`true`, 0},
		{`1e300`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.Equal(t, tt.want, ts)
		})
	}
}

func TestTimestamp_Time(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	assert.True(t, NewTimestamp(now).Time().Equal(now))
	assert.True(t, Timestamp(0).Time().IsZero())
}

func TestEntry_ImportedTimestampDecodes(t *testing.T) {
	var e InventoryEntry
	err := json.Unmarshal([]byte(`{"id":"e1","year":"2024","month":"MARS","drugName":"X","quantity":5,"date":"2024-03-10","createdAt":"2024-03-10T09:00:00Z"}`), &e)
	require.NoError(t, err)
	assert.Equal(t, 5, e.Quantity.Int())
	assert.Equal(t, 2024, e.CreatedAt.Time().UTC().Year())
}

func TestMoney_RoundTripAsNumber(t *testing.T) {
	item := PeremptionItem{ID: "i1", Quantity: 3, UnitPrice: NewMoney(120.5), TotalPrice: NewMoney(361.5)}

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"unitPrice":120.5`)

	var back PeremptionItem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.TotalPrice.Equal(item.TotalPrice.Decimal))

	var lenient PeremptionItem
	require.NoError(t, json.Unmarshal([]byte(`{"unitPrice":"12,50","totalPrice":null}`), &lenient))
	assert.Equal(t, "12.5", lenient.UnitPrice.String())
	assert.True(t, lenient.TotalPrice.IsZero())
}

func TestComposeFullName(t *testing.T) {
	assert.Equal(t, "DOLIPRANE CP 500MG B/16", ComposeFullName(" Doliprane", "cp", "500mg", "b/16 "))
	assert.Equal(t, "RIVOTRIL  2MG", ComposeFullName("rivotril", "", "2mg", ""))
	assert.True(t, SameName("Doliprane cp", "DOLIPRANE CP"))
}

func TestPeremption_Total(t *testing.T) {
	p := Peremption{Items: []PeremptionItem{
		{TotalPrice: NewMoney(10.10)},
		{TotalPrice: NewMoney(0.20)},
	}}
	assert.Equal(t, "10.3", p.Total().String())
}

func TestStockInitial_Year(t *testing.T) {
	assert.Equal(t, "2024", StockInitial{Date: "2024-01-01"}.Year())
	assert.Equal(t, "", StockInitial{Date: "24"}.Year())
	assert.True(t, IsCollection("inventory_sorties"))
	assert.False(t, IsCollection("users"))
}
