// excel.go - Workbook export of a completed result set.

package export

import (
	"bytes"
	"fmt"

	"github.com/snapfind/product_scout_gemini/internal/session"
	"github.com/xuri/excelize/v2"
)

// BuildWorkbook renders a results snapshot into an .xlsx workbook with one
// sheet for nearby shops and one for online stores. Returns the serialized
// file bytes.
func BuildWorkbook(results session.Results) ([]byte, error) {
	if results.Product == nil {
		return nil, fmt.Errorf("no product in results")
	}

	f := excelize.NewFile()

	if err := writeShopsSheet(f, results); err != nil {
		return nil, err
	}
	if err := writeStoresSheet(f, results); err != nil {
		return nil, err
	}

	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeShopsSheet(f *excelize.File, results session.Results) error {
	const sheet = "Nearby Shops"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	if err := sw.SetRow("A1", []interface{}{"Product", results.Product.Name, results.Product.ApproximatePrice}); err != nil {
		return err
	}
	headers := []interface{}{"Store", "Address", "Distance", "Rating", "Availability"}
	if err := sw.SetRow("A3", headers); err != nil {
		return err
	}

	for i, shop := range results.Shops {
		cell, _ := excelize.CoordinatesToCellName(1, i+4)
		row := []interface{}{shop.Name, shop.Address, shop.Distance, shop.Rating, shop.AvailabilityScore}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	return sw.Flush()
}

func writeStoresSheet(f *excelize.File, results session.Results) error {
	const sheet = "Online Stores"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	headers := []interface{}{"Platform", "Price", "Stock", "URL"}
	if err := sw.SetRow("A1", headers); err != nil {
		return err
	}

	for i, store := range results.OnlineStores {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{store.Platform, store.Price, store.StockStatus, store.URL}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	return sw.Flush()
}
