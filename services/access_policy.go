package services

import "OrgVerify/models"

// Decision is the outcome of classifying a sender/recipient pair.
type Decision struct {
	Allow        bool
	RoutingClass models.RoutingClass
	Reason       string
}

func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	return &PolicyError{Reason: d.Reason}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Classify decides whether sender may message recipient and with which
// routing class. It has no side effects.
func Classify(sender, recipient *models.Actor) Decision {
	if !canChat(sender) || !canChat(recipient) {
		return deny(ReasonUnsupportedActor)
	}
	if sender.Ref == recipient.Ref {
		return deny(ReasonSelfMessage)
	}

	if sender.IsSupportAdmin() || recipient.IsSupportAdmin() {
		return Decision{Allow: true, RoutingClass: models.RoutingSupport}
	}

	if sender.IsCompanyScoped() && recipient.IsCompanyScoped() && *sender.CompanyID != *recipient.CompanyID {
		return deny(ReasonCrossCompany)
	}
	return Decision{Allow: true, RoutingClass: models.RoutingDirect}
}

func canChat(a *models.Actor) bool {
	if a == nil {
		return false
	}
	switch a.Ref.Kind {
	case models.KindEndUser:
		return true
	case models.KindSupportAdmin:
		return a.IsSupportAdmin()
	}
	return false
}

// messageCompany picks the company scope stamped on a message.
func messageCompany(sender, recipient *models.Actor) *uint {
	if sender.IsCompanyScoped() {
		id := *sender.CompanyID
		return &id
	}
	if recipient.IsCompanyScoped() {
		id := *recipient.CompanyID
		return &id
	}
	return nil
}
