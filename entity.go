package crm

import "time"

type Entity interface {
	GetID() string
	GetMeta() EntityMeta
}

type EntityMeta struct {
	// The name of the entity we're storing
	Type    string
	Created string
	Updated string
}

// TimeLayout is fixed width so that sort keys compare chronologically as
// plain strings. time.RFC3339Nano trims trailing zeros and would not.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

type Address struct {
	Street     string `json:"street,omitempty" dynamodbav:"street,omitempty"`
	City       string `json:"city,omitempty" dynamodbav:"city,omitempty"`
	State      string `json:"state,omitempty" dynamodbav:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty" dynamodbav:"postalCode,omitempty"`
	Country    string `json:"country,omitempty" dynamodbav:"country,omitempty"`
}

type Customer struct {
	ID        string   `json:"customerId" dynamodbav:"customerId"`
	FirstName string   `json:"firstName" dynamodbav:"firstName"`
	LastName  string   `json:"lastName" dynamodbav:"lastName"`
	JobTitle  string   `json:"jobTitle,omitempty" dynamodbav:"jobTitle,omitempty"`
	Company   string   `json:"company,omitempty" dynamodbav:"company,omitempty"`
	Email     string   `json:"email" dynamodbav:"email"`
	Phone     string   `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Address   *Address `json:"address,omitempty" dynamodbav:"address,omitempty"`
	Created   string   `json:"created" dynamodbav:"created"`
	Updated   string   `json:"updated" dynamodbav:"updated"`
	Type      string   `json:"type" dynamodbav:"type"`
}

func (c Customer) GetID() string { return c.ID }

func (c Customer) GetMeta() EntityMeta {
	return EntityMeta{Type: c.Type, Created: c.Created, Updated: c.Updated}
}

type EntityType string

const (
	EntityTypeContact     EntityType = "Contact"
	EntityTypeLead        EntityType = "Lead"
	EntityTypeOpportunity EntityType = "Opportunity"
	EntityTypeAccount     EntityType = "Account"
)

type Note struct {
	ID                 string     `json:"id" dynamodbav:"id"`
	CustomerID         string     `json:"customerId" dynamodbav:"customerId"`
	Title              string     `json:"title" dynamodbav:"title"`
	Content            string     `json:"content" dynamodbav:"content"`
	EntityType         EntityType `json:"entityType" dynamodbav:"entityType"`
	IsPrivate          bool       `json:"isPrivate" dynamodbav:"isPrivate"`
	AttachmentKey      string     `json:"attachmentKey,omitempty" dynamodbav:"attachmentKey,omitempty"`
	AttachmentFilename string     `json:"attachmentFilename,omitempty" dynamodbav:"attachmentFilename,omitempty"`
	Created            string     `json:"created" dynamodbav:"created"`
	Updated            string     `json:"updated" dynamodbav:"updated"`
	Type               string     `json:"type" dynamodbav:"type"`
}

func (n Note) GetID() string { return n.ID }

func (n Note) GetMeta() EntityMeta {
	return EntityMeta{Type: n.Type, Created: n.Created, Updated: n.Updated}
}

func (n Note) HasAttachment() bool {
	return n.AttachmentKey != ""
}
