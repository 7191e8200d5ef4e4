package ir

import (
	"strconv"
	"strings"
)

// FormatExpr renders e in a compact infix form.
func FormatExpr(e *Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

func binaryOp(k ExprKind) string {
	switch k {
	case ExprAdd:
		return " + "
	case ExprSub:
		return " - "
	case ExprMul:
		return "*"
	case ExprDiv:
		return "/"
	case ExprMod:
		return " % "
	case ExprEQ:
		return " == "
	case ExprNE:
		return " != "
	case ExprLT:
		return " < "
	case ExprLE:
		return " <= "
	case ExprGT:
		return " > "
	case ExprGE:
		return " >= "
	case ExprAnd:
		return " && "
	case ExprOr:
		return " || "
	}
	return " ? "
}

func writeConst(sb *strings.Builder, t Type, d ConstData) {
	switch {
	case t.IsBool():
		if d.Int != 0 {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case t.IsFloat():
		s := strconv.FormatFloat(d.Float, 'g', -1, int(t.Bits))
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		sb.WriteString(s)
		if t.Bits == 32 {
			sb.WriteByte('f')
		}
	case t.IsInt() && t.Bits == 32:
		sb.WriteString(strconv.FormatInt(d.Int, 10))
	default:
		sb.WriteString("(" + t.String() + ")")
		sb.WriteString(strconv.FormatInt(d.Int, 10))
	}
}

func writeArgs(sb *strings.Builder, name string, args ...*Expr) {
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, a)
	}
	sb.WriteByte(')')
}

func writeExpr(sb *strings.Builder, e *Expr) {
	if e == nil {
		sb.WriteString("<nil>")
		return
	}
	switch d := e.Data.(type) {
	case ConstData:
		writeConst(sb, e.Type, d)
	case InfData:
		if d.Neg {
			sb.WriteString("-inf")
		} else {
			sb.WriteString("+inf")
		}
	case VarData:
		sb.WriteString(d.Name)
	case BinaryData:
		if e.Kind == ExprMin || e.Kind == ExprMax {
			name := "min"
			if e.Kind == ExprMax {
				name = "max"
			}
			writeArgs(sb, name, d.A, d.B)
			return
		}
		sb.WriteByte('(')
		writeExpr(sb, d.A)
		sb.WriteString(binaryOp(e.Kind))
		writeExpr(sb, d.B)
		sb.WriteByte(')')
	case UnaryData:
		if e.Kind == ExprNot {
			sb.WriteByte('!')
			writeExpr(sb, d.A)
			return
		}
		writeArgs(sb, "likely", d.A)
	case SelectData:
		writeArgs(sb, "select", d.Cond, d.True, d.False)
	case LetData:
		sb.WriteString("(let " + d.Name + " = ")
		writeExpr(sb, d.Value)
		sb.WriteString(" in ")
		writeExpr(sb, d.Body)
		sb.WriteByte(')')
	case LoadData:
		sb.WriteString(d.Buffer)
		sb.WriteByte('[')
		writeExpr(sb, d.Index)
		sb.WriteByte(']')
	case CallData:
		writeArgs(sb, d.Name, d.Args...)
	case RampData:
		sb.WriteString("ramp(")
		writeExpr(sb, d.Base)
		sb.WriteString(", ")
		writeExpr(sb, d.Stride)
		sb.WriteString(", " + strconv.Itoa(d.Lanes) + ")")
	case BroadcastData:
		writeArgs(sb, "x"+strconv.Itoa(d.Lanes), d.Value)
	case CastData:
		writeArgs(sb, e.Type.String(), d.Value)
	default:
		sb.WriteString("<" + e.Kind.String() + ">")
	}
}

// FormatStmt renders s as indented pseudo-code. The empty statement
// renders as "no_op".
func FormatStmt(s *Stmt) string {
	p := stmtPrinter{}
	p.stmt(s)
	return p.sb.String()
}

type stmtPrinter struct {
	sb     strings.Builder
	indent int
}

func (p *stmtPrinter) line(parts ...string) {
	for range p.indent {
		p.sb.WriteString("  ")
	}
	for _, part := range parts {
		p.sb.WriteString(part)
	}
	p.sb.WriteByte('\n')
}

func (p *stmtPrinter) nested(s *Stmt) {
	p.indent++
	p.stmt(s)
	p.indent--
}

func (p *stmtPrinter) stmt(s *Stmt) {
	if s == nil {
		p.line("no_op")
		return
	}
	switch d := s.Data.(type) {
	case ForData:
		kind := ""
		if d.Kind != ForSerial {
			kind = d.Kind.String() + " "
		}
		p.line(kind, "for (", d.Name, ", ", FormatExpr(d.Min), ", ", FormatExpr(d.Extent), ") {")
		p.nested(d.Body)
		p.line("}")
	case LetStmtData:
		p.line("let ", d.Name, " = ", FormatExpr(d.Value))
		p.stmt(d.Body)
	case StoreData:
		p.line(d.Buffer, "[", FormatExpr(d.Index), "] = ", FormatExpr(d.Value))
	case IfData:
		p.line("if (", FormatExpr(d.Cond), ") {")
		p.nested(d.Then)
		for d.Else != nil {
			next, ok := d.Else.Data.(IfData)
			if !ok {
				p.line("} else {")
				p.nested(d.Else)
				break
			}
			p.line("} else if (", FormatExpr(next.Cond), ") {")
			p.nested(next.Then)
			d = next
		}
		p.line("}")
	case BlockData:
		for _, c := range d.Stmts {
			p.stmt(c)
		}
	case EvaluateData:
		p.line(FormatExpr(d.Value))
	case AllocateData:
		shared := ""
		if d.Shared {
			shared = " shared"
		}
		p.line("allocate ", d.Name, "[", d.Type.String(), " * ", FormatExpr(d.Size), "]", shared)
		p.stmt(d.Body)
	default:
		p.line("<", s.Kind.String(), ">")
	}
}
