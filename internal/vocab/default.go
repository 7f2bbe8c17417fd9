package vocab

// Default returns the built-in vocabulary for Vietnamese expense chats.
// Category names are canonical English keys written to the ledger.
func Default() *Vocabulary {
	return &Vocabulary{
		Categories: map[string][]string{
			"food": {
				"an", "ăn", "cơm", "phở", "bún", "bánh mì", "hủ tiếu", "bánh canh",
				"food", "lunch", "dinner",
			},
			"drink": {
				"cafe", "cà phê", "trà sữa", "trà đá", "sinh tố", "bia",
				"coffee", "drink",
			},
			"transport": {
				"grab", "xăng", "taxi", "gửi xe", "xe ôm", "bus",
				"transport",
			},
			"shopping": {
				"mua sắm", "shopee", "lazada", "quần áo",
				"shopping",
			},
			"bills": {
				"điện", "internet", "tiền nhà", "hoá đơn", "hóa đơn",
				"bills",
			},
			"health": {
				"thuốc", "khám bệnh", "bệnh viện",
				"health",
			},
			"entertainment": {
				"xem phim", "karaoke", "game",
				"movie",
			},
		},
		Synonyms: map[string]string{
			"cf":      "cafe",
			"hnay":    "hôm nay",
			"hqua":    "hôm qua",
			"hum qua": "hôm qua",
			"ngàn":    "nghìn",
			"củ":      "triệu",
		},
		RelativeDates: map[string]int{
			"today":        0,
			"hôm nay":      0,
			"yesterday":    -1,
			"hôm qua":      -1,
			"ngày hôm qua": -1,
			"hôm kia":      -2,
		},
		Multipliers: map[string]string{
			"k":     "1000",
			"nghìn": "1000",
			"tr":    "1000000",
			"triệu": "1000000",
			"đ":     "1",
			"vnd":   "1",
			"đồng":  "1",
		},
		DayMarkers: []string{"ngày", "day"},
		Fillers: []string{
			"tui", "tôi", "mình", "em", "anh", "đặt", "cho", "order", "hết", "là", "và",
			"for", "on", "spent",
		},
		CorrectionMarkers: []string{"sửa", "sửa lại", "nhầm", "đính chính", "fix", "correction"},
		CancelMarkers:     []string{"hủy", "huỷ", "hủy order", "không ăn", "ko ăn", "k ăn", "cancel", "void"},
	}
}
