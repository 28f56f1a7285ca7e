package domain

// ExportFormat формат экспорта оффер-листа
type ExportFormat string

const (
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatPNG  ExportFormat = "png"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// SupportTier уровень поддержки, упорядочен по возрастанию
type SupportTier int

const (
	SupportTierCommunity SupportTier = iota
	SupportTierEmail
	SupportTierPriority
)

// UnlimitedOffers значение лимита, означающее отсутствие ограничения
const UnlimitedOffers = -1

// EntitlementBundle набор возможностей и лимитов, действующих для пользователя.
// Определяется планом и статусом подписки, никогда не меняется на лету.
type EntitlementBundle struct {
	MaxOffersPerPeriod int            `json:"max_offers_per_period"` // -1 = без ограничения
	CustomBranding     bool           `json:"custom_branding"`
	RemoveWatermark    bool           `json:"remove_watermark"`
	SaveTemplates      bool           `json:"save_templates"`
	SaveCustomers      bool           `json:"save_customers"`
	DashboardAccess    bool           `json:"dashboard_access"`
	AnalyticsAccess    bool           `json:"analytics_access"`
	ExportFormats      []ExportFormat `json:"export_formats"`
	MaxTeamMembers     int            `json:"max_team_members"`
	SupportTier        SupportTier    `json:"support_tier"`
}

// AllowsExport проверяет, разрешен ли формат экспорта
func (b EntitlementBundle) AllowsExport(format ExportFormat) bool {
	for _, f := range b.ExportFormats {
		if f == format {
			return true
		}
	}
	return false
}

// AllowsMoreOffers проверяет, позволяет ли лимит создать еще один оффер-лист
// при текущем значении счетчика
func (b EntitlementBundle) AllowsMoreOffers(created int) bool {
	if b.MaxOffersPerPeriod == UnlimitedOffers {
		return true
	}
	return created < b.MaxOffersPerPeriod
}
