package core

// Import CSV columns. Lookup is case-insensitive; ReadRows upper-cases headers.
const (
	ColWorkID                  = "WORK_ID"
	ColWorkTitle               = "WORK_TITLE"
	ColWriters                 = "WRITERS"
	ColBatchID                 = "BATCH_ID"
	ColBatchDescription        = "BATCH_DESCRIPTION"
	ColAgreementID             = "AGREEMENT_ID"
	ColCustomWorkID            = "CUSTOM_WORK_ID"
	ColRightType               = "RIGHT_TYPE"
	ColRightTypeGroup          = "RIGHT_TYPE_GROUP"
	ColTerritory               = "TERRITORY"
	ColTerritoryISO            = "TERRITORY_ISO_ALPHA_2_CODE"
	ColDistributedAmount       = "DISTRIBUTED_AMOUNT"
	ColPercentagePaid          = "PERCENTAGE_PAID"
	ColUnitSum                 = "UNIT_SUM"
	ColWhtAdjReceivedAmount    = "WHT_ADJ_RECEIVED_AMOUNT"
	ColWhtAdjSourceAmount      = "WHT_ADJ_SOURCE_AMOUNT"
	ColDirectCollectFeeTaken   = "DIRECT_COLLECT_FEE_TAKEN"
	ColDirectCollectedAmount   = "DIRECT_COLLECTED_AMOUNT"
	ColCreditOrDebit           = "CREDIT_OR_DEBIT"
	ColRecordingArtist         = "RECORDING_ARTIST"
	ColAvProductionTitle       = "AV_PRODUCTION_TITLE"
	ColPeriodStart             = "ROYALTY_PERIOD_START_DATE"
	ColPeriodEnd               = "ROYALTY_PERIOD_END_DATE"
	ColSourceName              = "SOURCE_NAME"
	ColRevenueSourceName       = "REVENUE_SOURCE_NAME"
	ColGeneratedAtCoverRate    = "GENERATED_AT_COVER_RATE"
	ColExploitationLicenceID   = "EXPLOITATION_LICENCE_ID"
	ColExploitationTitle       = "EXPLOITATION_TITLE"
	ColExploitationArtist      = "EXPLOITATION_ARTIST"
	ColExploitationDescription = "EXPLOITATION_DESCRIPTION"
	ColExploitationFormat      = "EXPLOITATION_FORMAT"
)

// ImportColumns lists every recognised input column in file order.
var ImportColumns = []string{
	ColWorkID, ColWorkTitle, ColWriters, ColBatchID, ColBatchDescription,
	ColAgreementID, ColCustomWorkID, ColRightType, ColRightTypeGroup,
	ColTerritory, ColTerritoryISO, ColDistributedAmount, ColPercentagePaid,
	ColUnitSum, ColWhtAdjReceivedAmount, ColWhtAdjSourceAmount,
	ColDirectCollectFeeTaken, ColDirectCollectedAmount, ColCreditOrDebit,
	ColRecordingArtist, ColAvProductionTitle, ColPeriodStart, ColPeriodEnd,
	ColSourceName, ColRevenueSourceName, ColGeneratedAtCoverRate,
	ColExploitationLicenceID, ColExploitationTitle, ColExploitationArtist,
	ColExploitationDescription, ColExploitationFormat,
}

// ExportColumns is the header of a statement export.
var ExportColumns = []string{
	"WORK_ID",
	"WORK_TITLE",
	"WRITERS",
	"RIGHT_TYPE",
	"RIGHT_TYPE_GROUP",
	"TERRITORY",
	"BATCH_ID",
	"DISTRIBUTED_AMOUNT",
	"COEFFICIENT",
	"FINAL_DISTRIBUTED_AMOUNT",
	"PERIOD_START",
	"PERIOD_END",
	"RECORDING_ARTIST",
	"SOURCE_NAME",
}

// TotalLabel marks the trailing totals row of an export.
const TotalLabel = "TOTAL"
