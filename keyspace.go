package crm

import (
	"strings"

	"github.com/acksell/crm/dynamodb/schema"
	"github.com/acksell/crm/dynamodb/table"
)

const DefaultTableName = "crm-table"

const (
	AttrPK      = "pk"
	AttrSK      = "sk"
	AttrType    = "type"
	AttrCreated = "created"
	AttrUpdated = "updated"
	AttrNoteID  = "id"

	IndexByType = "gsi1"
)

const (
	TypeCustomer = "CUSTOMER"
	TypeNote     = "NOTE"

	CustomerPrefix = "CUSTOMER#"
	NotePrefix     = "NOTE#"
	// CustomerSortKey is the sort key of the customer item inside its own
	// partition. Notes share the partition under NOTE# sort keys.
	CustomerSortKey = "METADATA"
)

// Table is the single table every entity lives in. Bind it to a physical
// table with WithName.
var Table = table.TableDefinition{
	Name: DefaultTableName,
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: AttrPK, Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: AttrSK, Kind: table.KeyKindS},
	},
	GSIs: []table.GSIDefinition{
		{
			Name: IndexByType,
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: AttrType, Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: AttrCreated, Kind: table.KeyKindS},
			},
		},
	},
}

var CustomerIndex = table.PrimaryIndexDefinition{
	Table:          Table,
	PartitionKeyer: table.FmtKeyer(CustomerPrefix+"%s", "customerId"),
	SortKeyer:      table.ConstKeyer(CustomerSortKey),
}

var NoteIndex = table.PrimaryIndexDefinition{
	Table:          Table,
	PartitionKeyer: table.FmtKeyer(CustomerPrefix+"%s", "customerId"),
	SortKeyer:      table.FmtKeyer(NotePrefix+"%s#%s", "created", "id"),
}

func CustomerPK(customerID string) string {
	return CustomerPrefix + customerID
}

func CustomerKey(customerID string) table.PrimaryKey {
	return Table.KeyDefinitions.Key(CustomerPK(customerID), CustomerSortKey)
}

func NoteSK(created, noteID string) string {
	return NotePrefix + created + "#" + noteID
}

func NoteKey(customerID, created, noteID string) table.PrimaryKey {
	return Table.KeyDefinitions.Key(CustomerPK(customerID), NoteSK(created, noteID))
}

// ParseNoteSK splits a note sort key into its creation timestamp and id.
func ParseNoteSK(sk string) (created, noteID string, ok bool) {
	rest, found := strings.CutPrefix(sk, NotePrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, "#")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// AttachmentKey is the object key an attachment for the note is uploaded to.
func AttachmentKey(customerID, noteID, filename string) string {
	return "notes/" + customerID + "/attachments/" + noteID + "/" + filename
}

// Layout describes the table and the entities stored in it.
func Layout(tableName string) schema.Schema {
	def := Table.WithName(tableName)
	byType := func(t string) []schema.GSIMapping {
		return []schema.GSIMapping{{GSI: IndexByType, PartitionPattern: t, SortPattern: "{" + AttrCreated + "}"}}
	}
	return schema.Describe(def,
		schema.EntitySpec{Type: TypeCustomer, Index: CustomerIndex, Value: Customer{}, GSIs: byType(TypeCustomer)},
		schema.EntitySpec{Type: TypeNote, Index: NoteIndex, Value: Note{}, GSIs: byType(TypeNote)},
	)
}
