package chat

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/gudangmitra/gudang/internal/model"
)

// ItemContext is the slice of an item the assistant sees.
type ItemContext struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Quantity    int    `json:"quantity"`
	MinQuantity int    `json:"minQuantity"`
	Status      string `json:"status"`
	Price       string `json:"price"`
}

// BuildItemsContext summarizes active items for the prompt.
func BuildItemsContext(items []model.Item) []ItemContext {
	out := make([]ItemContext, 0, len(items))
	for _, it := range items {
		if !it.IsActive {
			continue
		}
		out = append(out, ItemContext{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Category:    it.Category,
			Quantity:    it.Quantity,
			MinQuantity: it.MinQuantity,
			Status:      model.DeriveStatus(it.Quantity, it.MinQuantity),
			Price:       it.Price.String(),
		})
	}
	return out
}

var indonesianPattern = regexp.MustCompile(`[\x{0100}-\x{017F}]|(?i:apa|yang|ada|barang|stok|tersedia|item|produk|kategori|harga|jumlah|saya|bisa|tolong|bantuan|cari|lihat|mana|dimana|berapa|kapan|bagaimana|kenapa|siapa)`)

// IsIndonesian guesses whether a message is written in Indonesian.
func IsIndonesian(message string) bool {
	return indonesianPattern.MatchString(message)
}

const promptHeader = `You are a helpful AI assistant for an inventory management system called "Gudang Mitra".
You help users find information about items in the inventory, check availability, compare products, and answer questions about stock levels.

IMPORTANT: %s.

Current inventory items:
%s

Guidelines:
%s`

const guidelinesID = `- Bersikap ramah dan membantu
- Berikan informasi akurat tentang barang berdasarkan data inventori saat ini
- Jika ditanya tentang barang tertentu, periksa data inventori
- Bantu pengguna memahami status stok (tersedia, stok rendah, habis)
- Sarankan alternatif jika barang yang diminta habis
- Format respons dengan jelas dan ringkas
- Jika tidak memiliki informasi tentang sesuatu, katakan dengan jelas
- Untuk status stok: "tersedia" (in-stock), "stok rendah" (low-stock), "habis" (out-of-stock)`

const guidelinesEN = `- Be helpful and friendly
- Provide accurate information about items based on the current inventory
- If asked about specific items, check the inventory data
- Help users understand stock levels (in-stock, low-stock, out-of-stock)
- Suggest alternatives if requested items are out of stock
- Format responses clearly and concisely
- If you don't have information about something, say so clearly`

// SystemPrompt renders the assistant's instructions around the inventory snapshot.
func SystemPrompt(items []ItemContext, indonesian bool) (string, error) {
	if items == nil {
		items = []ItemContext{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding items context: %w", err)
	}
	lang, guidelines := "Respond in English", guidelinesEN
	if indonesian {
		lang, guidelines = "Respond in Bahasa Indonesia (Indonesian language)", guidelinesID
	}
	return fmt.Sprintf(promptHeader, lang, data, guidelines), nil
}
